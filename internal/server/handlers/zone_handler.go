package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

// ZoneService is the zone registry used by ZoneHandler.
type ZoneService interface {
	Create(ctx context.Context, name, cropType string) (models.Zone, error)
	List(ctx context.Context, includeArchived bool) ([]models.Zone, error)
	Archive(ctx context.Context, zoneID string) (models.Zone, error)
	Unarchive(ctx context.Context, zoneID string) (models.Zone, error)
}

// ZoneHandler exposes the zone registry.
type ZoneHandler struct {
	svc    ZoneService
	logger *zap.Logger
}

// NewZoneHandler constructs the HTTP handler adapter.
func NewZoneHandler(svc ZoneService, logger *zap.Logger) *ZoneHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZoneHandler{svc: svc, logger: logger}
}

type createZoneRequest struct {
	Name     string `json:"name"`
	CropType string `json:"cropType"`
}

// List returns zones, archived ones only with includeArchived.
func (h *ZoneHandler) List(c *gin.Context) {
	zones, err := h.svc.List(c.Request.Context(), flag(c, "includeArchived"))
	if err != nil {
		writeError(c, h.logger, "failed listing zones", err)
		return
	}
	c.JSON(http.StatusOK, zones)
}

// Create registers a new zone.
func (h *ZoneHandler) Create(c *gin.Context) {
	var req createZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	zone, err := h.svc.Create(c.Request.Context(), req.Name, req.CropType)
	if err != nil {
		writeError(c, h.logger, "failed creating zone", err)
		return
	}
	c.JSON(http.StatusOK, zone)
}

// Archive soft-deletes a zone.
func (h *ZoneHandler) Archive(c *gin.Context) {
	zone, err := h.svc.Archive(c.Request.Context(), c.Param("zoneId"))
	if err != nil {
		writeError(c, h.logger, "failed archiving zone", err)
		return
	}
	c.JSON(http.StatusOK, zone)
}

// Unarchive restores a zone.
func (h *ZoneHandler) Unarchive(c *gin.Context) {
	zone, err := h.svc.Unarchive(c.Request.Context(), c.Param("zoneId"))
	if err != nil {
		writeError(c, h.logger, "failed unarchiving zone", err)
		return
	}
	c.JSON(http.StatusOK, zone)
}
