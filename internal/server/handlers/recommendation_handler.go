package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
	"github.com/mamadbah2/cropwatch/internal/service/recommendations"
)

// RecommendationService generates recommendations and applies decisions.
type RecommendationService interface {
	Generate(ctx context.Context, zoneID string) (models.Recommendation, error)
	ApplyDecision(ctx context.Context, req recommendations.DecisionRequest) (models.Recommendation, error)
}

// RecommendationHandler exposes recommendation generation and decisions.
type RecommendationHandler struct {
	svc    RecommendationService
	logger *zap.Logger
}

// NewRecommendationHandler constructs the HTTP handler adapter.
func NewRecommendationHandler(svc RecommendationService, logger *zap.Logger) *RecommendationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationHandler{svc: svc, logger: logger}
}

type runRequest struct {
	ZoneID string `json:"zoneId"`
}

// Run scores a zone and stores a pending recommendation.
func (h *RecommendationHandler) Run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.ZoneID == "" {
		badRequest(c, "zoneId required")
		return
	}

	rec, err := h.svc.Generate(c.Request.Context(), req.ZoneID)
	if err != nil {
		writeError(c, h.logger, "failed generating recommendation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "recommendation": rec})
}

// Decide applies approve, reject or execute to a recommendation.
func (h *RecommendationHandler) Decide(c *gin.Context) {
	var req recommendations.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.RecommendationID == "" || req.Action == "" {
		badRequest(c, "recommendationId and action required")
		return
	}

	rec, err := h.svc.ApplyDecision(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "failed applying decision", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "recommendation": rec})
}
