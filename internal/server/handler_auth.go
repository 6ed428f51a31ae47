package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"complaintrack/server/internal/identity/service"
)

// AuthHandler exposes the register/login/logout/me endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler returns the auth endpoint handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	EmailOrPhone string `json:"emailOrPhone" binding:"required"`
	Password     string `json:"password" binding:"required"`
}

// Register creates an account and opens a session. Responds with the bearer
// token and the identity snapshot.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "fullName, email, phone and password are required"})
		return
	}
	result, err := h.auth.Register(c.Request.Context(), req.FullName, req.Email, req.Phone, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		default:
			log.Printf("server: register failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "registration failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": result.Token, "user": result.Snapshot})
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "emailOrPhone and password are required"})
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req.EmailOrPhone, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
			return
		}
		log.Printf("server: login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": result.Token, "user": result.Snapshot})
}

// Logout revokes the caller's session. Runs behind Auth, so the token here is
// always a validated one.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), tokenFrom(c)); err != nil {
		log.Printf("server: logout failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the identity snapshot bound to the caller's session.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": identityFrom(c)})
}
