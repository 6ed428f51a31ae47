package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"complaintrack/server/internal/policy/engine"
	sessiondomain "complaintrack/server/internal/session/domain"
)

const (
	identityKey = "identity"
	tokenKey    = "token"
)

type ipCtxKey struct{}

// SessionValidator is the session store surface the middleware needs.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*sessiondomain.Snapshot, error)
}

// BearerToken extracts the bearer token from the Authorization header.
// Returns "" when the header is missing or not a Bearer scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Auth validates the bearer token against the session store and puts the
// identity snapshot into the request context. A token whose session has been
// revoked or expired is rejected even if the signature is still valid.
func Auth(sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
			return
		}
		snapshot, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			log.Printf("server: session validation failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "session lookup failed"})
			return
		}
		if snapshot == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "session expired or revoked"})
			return
		}
		c.Set(identityKey, snapshot)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// RequireAccess gates the route on the access policy. Must run after Auth.
// Policy evaluation failures deny the request.
func RequireAccess(policy engine.Evaluator, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := identityFrom(c)
		result, err := policy.EvaluateAccess(c.Request.Context(), identity, resource, action)
		if err != nil {
			log.Printf("server: access policy evaluation failed: %v", err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "access denied"})
			return
		}
		if !result.Allow {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "access denied"})
			return
		}
		c.Next()
	}
}

// CORS allows the configured browser origin on all routes, including
// preflight.
func CORS(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// ClientIPIntoContext copies gin's client IP into the request context so the
// audit logger can read it without depending on gin.
func ClientIPIntoContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), ipCtxKey{}, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ClientIPFromContext returns the client IP stored by ClientIPIntoContext, or
// "unknown". Wired as the audit logger's IP extractor.
func ClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipCtxKey{}).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}

func identityFrom(c *gin.Context) *sessiondomain.Snapshot {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	snapshot, _ := v.(*sessiondomain.Snapshot)
	return snapshot
}

func tokenFrom(c *gin.Context) string {
	v, ok := c.Get(tokenKey)
	if !ok {
		return ""
	}
	token, _ := v.(string)
	return token
}
