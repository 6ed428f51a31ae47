// Package server wires the HTTP surface: REST endpoints, the channel
// handshake, and the middleware chain in front of them.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"complaintrack/server/internal/chat"
	"complaintrack/server/internal/config"
	"complaintrack/server/internal/dispatch"
	"complaintrack/server/internal/identity/service"
	"complaintrack/server/internal/policy/engine"
	"complaintrack/server/internal/realtime"
	"complaintrack/server/internal/session"
)

// Deps holds everything the router mounts.
type Deps struct {
	Config     *config.Config
	DB         *sql.DB
	Sessions   *session.Store
	Auth       *service.AuthService
	Chat       *chat.Service
	Policy     engine.Evaluator
	Realtime   *realtime.Handler
	Dispatcher *dispatch.Dispatcher
}

// NewRouter builds the gin engine with all routes and middleware mounted.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(CORS(deps.Config.CORSOrigin))
	r.Use(ClientIPIntoContext())

	authHandler := NewAuthHandler(deps.Auth)
	messageHandler := NewMessageHandler(deps.Chat)
	sessionHandler := NewSessionHandler(deps.Sessions)
	eventHandler := NewEventHandler(deps.Dispatcher)

	r.GET("/health", healthHandler(deps.DB))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", Auth(deps.Sessions), authHandler.Logout)
		auth.GET("/me", Auth(deps.Sessions), authHandler.Me)

		messages := api.Group("/messages", Auth(deps.Sessions))
		messages.GET("/room/:roomId", messageHandler.History)
		messages.POST("", messageHandler.Post)

		api.GET("/sessions",
			Auth(deps.Sessions),
			RequireAccess(deps.Policy, "sessions", "list"),
			sessionHandler.List)

		// Dispatch intake for the complaint service.
		events := api.Group("/events",
			Auth(deps.Sessions),
			RequireAccess(deps.Policy, "events", "publish"))
		events.POST("/complaint", eventHandler.Complaint)
		events.POST("/status", eventHandler.Status)
	}

	// The channel handshake carries its token in the query string, so it
	// bypasses the bearer middleware and authenticates itself.
	r.GET("/ws", gin.WrapH(deps.Realtime))

	return r
}

func healthHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
