package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	auditlog "complaintrack/server/internal/audit"
	auditrepo "complaintrack/server/internal/audit/repository"
	"complaintrack/server/internal/chat"
	chatrepo "complaintrack/server/internal/chat/repository"
	"complaintrack/server/internal/config"
	"complaintrack/server/internal/db"
	"complaintrack/server/internal/dispatch"
	identityrepo "complaintrack/server/internal/identity/repository"
	identityservice "complaintrack/server/internal/identity/service"
	"complaintrack/server/internal/policy/engine"
	"complaintrack/server/internal/presence"
	"complaintrack/server/internal/realtime"
	"complaintrack/server/internal/security"
	"complaintrack/server/internal/server"
	"complaintrack/server/internal/session"
	sessionrepo "complaintrack/server/internal/session/repository"
	"complaintrack/server/internal/telemetry"
	"complaintrack/server/internal/telemetry/otel"
	"complaintrack/server/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "complaintrack-server", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	emitter := buildEmitter(cfg, providers)

	tokens := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.SessionTTLDuration())
	hasher := security.NewHasher(cfg.BcryptCost)

	store := session.NewStore(sessionrepo.NewPostgresRepository(conn), tokens, cfg.SessionTTLDuration())
	go store.RunSweeper(ctx, cfg.SweepIntervalDuration())

	auditLogger := auditlog.NewLogger(auditrepo.NewPostgresRepository(conn), server.ClientIPFromContext)
	authService := identityservice.NewAuthService(
		identityrepo.NewPostgresRepository(conn), store, hasher, auditLogger)

	registry := presence.NewMemoryRegistry()
	hub := realtime.NewHub(registry)
	dispatcher := dispatch.NewDispatcher(registry, emitter)
	chatService := chat.NewService(chatrepo.NewPostgresRepository(conn))
	server.WireChat(hub, chatService)

	authenticator := realtime.NewAuthenticator(tokens, store, auditLogger)
	wsHandler := realtime.NewHandler(hub, authenticator, cfg.CORSOrigin)

	policy, err := engine.NewOPAEvaluator(loadAccessPolicy(cfg.AccessPolicyRego))
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	if err := policy.HealthCheck(ctx); err != nil {
		log.Fatalf("policy health: %v", err)
	}

	router := server.NewRouter(server.Deps{
		Config:     cfg,
		DB:         conn,
		Sessions:   store,
		Auth:       authService,
		Chat:       chatService,
		Policy:     policy,
		Realtime:   wsHandler,
		Dispatcher: dispatcher,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	cancel()

	// Let in-flight async telemetry emits finish before tearing providers down.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if closer, ok := emitter.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}

// buildEmitter prefers Kafka when brokers are configured, otherwise OTel logs.
func buildEmitter(cfg *config.Config, providers *otel.Providers) telemetry.EventEmitter {
	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) > 0 {
		p, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			log.Printf("telemetry: kafka producer: %v", err)
		} else if p != nil {
			log.Printf("telemetry: emitting to kafka topic %s", cfg.TelemetryKafkaTopic)
			return p
		}
	}
	return otel.NewEventEmitter(providers.LoggerProvider)
}

// loadAccessPolicy returns the Rego source from value: a *.rego path is read
// from disk, anything else is treated as inline source. Empty keeps the
// built-in policy.
func loadAccessPolicy(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if strings.HasSuffix(value, ".rego") {
		src, err := os.ReadFile(value)
		if err != nil {
			log.Fatalf("policy: read %s: %v", value, err)
		}
		return string(src)
	}
	return value
}
