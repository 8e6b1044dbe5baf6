// Package observations ingests rover scans for a zone.
package observations

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

// ScanPrefix is the blob folder scan uploads land in.
const ScanPrefix = "rover-scans"

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Store is the persistence surface for observations.
type Store interface {
	GetZone(ctx context.Context, id uuid.UUID) (models.Zone, error)
	InsertObservation(ctx context.Context, obs models.Observation) (models.Observation, error)
}

// BlobPutter stores an object and returns its URL.
type BlobPutter interface {
	Put(ctx context.Context, pathname, contentType string, body []byte) (string, error)
}

// Service records observations.
type Service struct {
	store  Store
	blobs  BlobPutter
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the observation service. blobs may be nil, in which case
// Upload reports models.ErrBlobUnavailable.
func NewService(store Store, blobs BlobPutter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, blobs: blobs, logger: logger, now: time.Now}
}

// Record stores a scan that was already uploaded elsewhere. The URL is kept
// as given.
func (s *Service) Record(ctx context.Context, zoneID, blobURL string) (models.Observation, error) {
	blobURL = strings.TrimSpace(blobURL)
	if blobURL == "" {
		return models.Observation{}, fmt.Errorf("%w: blobUrl is required", models.ErrValidation)
	}
	id, err := s.existingZone(ctx, zoneID)
	if err != nil {
		return models.Observation{}, err
	}
	return s.insert(ctx, id, models.ObservationScan, blobURL)
}

// Upload pushes image bytes to the blob store and records them as an image
// observation.
func (s *Service) Upload(ctx context.Context, zoneID, filename, contentType string, body []byte) (models.Observation, error) {
	if len(body) == 0 {
		return models.Observation{}, fmt.Errorf("%w: empty upload", models.ErrValidation)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !allowedContentTypes[contentType] {
		return models.Observation{}, fmt.Errorf("%w: unsupported content type %q", models.ErrValidation, contentType)
	}
	if s.blobs == nil {
		return models.Observation{}, models.ErrBlobUnavailable
	}

	id, err := s.existingZone(ctx, zoneID)
	if err != nil {
		return models.Observation{}, err
	}

	pathname := fmt.Sprintf("%s/%d-%s", ScanPrefix, s.now().UnixMilli(), cleanFilename(filename))
	url, err := s.blobs.Put(ctx, pathname, contentType, body)
	if err != nil {
		s.logger.Error("blob upload failed", zap.String("pathname", pathname), zap.Error(err))
		return models.Observation{}, fmt.Errorf("%w: %w", models.ErrBlobUnavailable, err)
	}

	return s.insert(ctx, id, models.ObservationImage, url)
}

func (s *Service) existingZone(ctx context.Context, zoneID string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(zoneID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: zoneId must be a UUID", models.ErrValidation)
	}
	if _, err := s.store.GetZone(ctx, id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *Service) insert(ctx context.Context, zoneID uuid.UUID, kind models.ObservationType, url string) (models.Observation, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	obs, err := s.store.InsertObservation(ctx, models.Observation{
		ID:         uuid.New(),
		ZoneID:     zoneID,
		Type:       kind,
		ImageURL:   &url,
		CapturedAt: now,
		UploadedAt: now,
	})
	if err != nil {
		return models.Observation{}, err
	}

	s.logger.Info("observation recorded",
		zap.String("observation_id", obs.ID.String()),
		zap.String("zone_id", zoneID.String()),
		zap.String("type", string(kind)),
	)
	return obs, nil
}

// cleanFilename keeps the base name only so uploads cannot escape the prefix.
func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "scan"
	}
	return name
}
