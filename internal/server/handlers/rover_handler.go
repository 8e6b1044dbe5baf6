package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

// MaxUploadBytes caps a single scan upload.
const MaxUploadBytes = 10 << 20

// ObservationService ingests rover scans.
type ObservationService interface {
	Record(ctx context.Context, zoneID, blobURL string) (models.Observation, error)
	Upload(ctx context.Context, zoneID, filename, contentType string, body []byte) (models.Observation, error)
}

// RoverHandler receives scans from the rover.
type RoverHandler struct {
	svc    ObservationService
	logger *zap.Logger
	now    func() time.Time
}

// NewRoverHandler constructs the HTTP handler adapter.
func NewRoverHandler(svc ObservationService, logger *zap.Logger) *RoverHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoverHandler{svc: svc, logger: logger, now: time.Now}
}

type recordRequest struct {
	ZoneID  string `json:"zoneId"`
	BlobURL string `json:"blobUrl"`
}

// RecordObservation stores a scan already uploaded to the blob store.
func (h *RoverHandler) RecordObservation(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.ZoneID == "" || req.BlobURL == "" {
		badRequest(c, "zoneId + blobUrl required")
		return
	}

	obs, err := h.svc.Record(c.Request.Context(), req.ZoneID, req.BlobURL)
	if err != nil {
		writeError(c, h.logger, "failed recording observation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "observation": obs})
}

// Upload accepts raw image bytes. The filename comes from X-Filename.
func (h *RoverHandler) Upload(c *gin.Context) {
	zoneID := c.Query("zoneId")
	if zoneID == "" {
		badRequest(c, "zoneId query param required")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		badRequest(c, "unable to read upload body")
		return
	}

	contentType := c.ContentType()
	if contentType == "" {
		contentType = "image/jpeg"
	}
	filename := c.GetHeader("X-Filename")
	if filename == "" {
		filename = fmt.Sprintf("scan-%d.jpg", h.now().UnixMilli())
	}

	obs, err := h.svc.Upload(c.Request.Context(), zoneID, filename, contentType, body)
	if err != nil {
		writeError(c, h.logger, "failed uploading scan", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "blobUrl": obs.ImageURL, "observation": obs})
}
