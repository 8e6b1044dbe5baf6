package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
	"github.com/mamadbah2/cropwatch/internal/export"
)

// DashboardService builds the dashboard read models.
type DashboardService interface {
	Timeline(ctx context.Context, zoneID string) (models.Timeline, error)
	Summary(ctx context.Context, includeArchived bool) ([]models.ZoneSummary, error)
}

// DashboardHandler serves the zone summary, its export and zone timelines.
type DashboardHandler struct {
	svc    DashboardService
	logger *zap.Logger
	now    func() time.Time
}

// NewDashboardHandler constructs the HTTP handler adapter.
func NewDashboardHandler(svc DashboardService, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{svc: svc, logger: logger, now: time.Now}
}

// Summary lists zones with their derived status.
func (h *DashboardHandler) Summary(c *gin.Context) {
	zones, err := h.svc.Summary(c.Request.Context(), flag(c, "includeArchived"))
	if err != nil {
		writeError(c, h.logger, "failed building summary", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"zones": zones})
}

// Export streams the summary as an XLSX workbook.
func (h *DashboardHandler) Export(c *gin.Context) {
	zones, err := h.svc.Summary(c.Request.Context(), flag(c, "includeArchived"))
	if err != nil {
		writeError(c, h.logger, "failed building summary export", err)
		return
	}

	now := h.now()
	var buf bytes.Buffer
	if err := export.WriteZoneSummary(&buf, zones, now); err != nil {
		writeError(c, h.logger, "failed rendering summary export", err)
		return
	}

	filename := fmt.Sprintf("zone-summary-%s.xlsx", now.UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// Timeline returns the latest observations and recommendations of a zone.
func (h *DashboardHandler) Timeline(c *gin.Context) {
	zoneID := c.Query("zoneId")
	if zoneID == "" {
		badRequest(c, "zoneId required")
		return
	}

	timeline, err := h.svc.Timeline(c.Request.Context(), zoneID)
	if err != nil {
		writeError(c, h.logger, "failed loading timeline", err)
		return
	}
	c.JSON(http.StatusOK, timeline)
}
