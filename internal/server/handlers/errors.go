package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrIllegalTransition), errors.Is(err, models.ErrDuplicateZone):
		return http.StatusConflict
	case errors.Is(err, models.ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrBlobUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with {"error": ...}. Client errors echo the message;
// server errors stay generic and are logged in full.
func writeError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	fields := []zap.Field{
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Error(err),
	}

	if status < http.StatusInternalServerError {
		logger.Warn(msg, fields...)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	logger.Error(msg, fields...)
	c.JSON(status, gin.H{"error": http.StatusText(status)})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// flag reads boolean query parameters given as 1 or true.
func flag(c *gin.Context, key string) bool {
	v := c.Query(key)
	return v == "1" || v == "true"
}
