package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/auth"
)

// AuthHandler issues demo sessions.
type AuthHandler struct {
	sessions     *auth.SessionManager
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler constructs the login handler. secureCookie marks the session
// cookie Secure and should be true in production.
func NewAuthHandler(sessions *auth.SessionManager, secureCookie bool, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{sessions: sessions, secureCookie: secureCookie, logger: logger}
}

type loginRequest struct {
	Passcode string `json:"passcode"`
}

// DemoLogin exchanges the shared passcode for a session cookie.
func (h *AuthHandler) DemoLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Passcode) == "" {
		badRequest(c, "Passcode required")
		return
	}

	token, err := h.sessions.Login(req.Passcode)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPasscode) {
			h.logger.Warn("demo login rejected", zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid passcode"})
			return
		}
		h.logger.Error("demo login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	auth.SetSessionCookie(c, token, h.secureCookie)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
