// Package zones manages the farm's zone registry.
package zones

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

// Store is the persistence surface for zones.
type Store interface {
	CreateZone(ctx context.Context, zone models.Zone) (models.Zone, error)
	GetZone(ctx context.Context, id uuid.UUID) (models.Zone, error)
	ListZones(ctx context.Context, includeArchived bool) ([]models.Zone, error)
	SetZoneArchivedAt(ctx context.Context, id uuid.UUID, archivedAt *time.Time) (models.Zone, error)
	ArchiveZone(ctx context.Context, id uuid.UUID, at time.Time) (models.Zone, bool, error)
}

// Service creates, lists and archives zones of one farm.
type Service struct {
	store  Store
	farmID uuid.UUID
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires the zone registry for farmID.
func NewService(store Store, farmID uuid.UUID, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, farmID: farmID, logger: logger, now: time.Now}
}

// Create registers a zone. Names are unique per farm regardless of case, and
// archived zones keep their name reserved.
func (s *Service) Create(ctx context.Context, name, cropType string) (models.Zone, error) {
	name = strings.TrimSpace(name)
	cropType = strings.TrimSpace(cropType)
	switch {
	case name == "":
		return models.Zone{}, fmt.Errorf("%w: name is required", models.ErrValidation)
	case cropType == "":
		return models.Zone{}, fmt.Errorf("%w: cropType is required", models.ErrValidation)
	}

	zone, err := s.store.CreateZone(ctx, models.Zone{
		ID:        uuid.New(),
		FarmID:    s.farmID,
		Name:      name,
		CropType:  cropType,
		CreatedAt: s.timestamp(),
	})
	if err != nil {
		return models.Zone{}, err
	}

	s.logger.Info("zone created", zap.String("zone_id", zone.ID.String()), zap.String("name", zone.Name))
	return zone, nil
}

// List returns zones newest first.
func (s *Service) List(ctx context.Context, includeArchived bool) ([]models.Zone, error) {
	return s.store.ListZones(ctx, includeArchived)
}

// Archive soft-deletes a zone. Archiving twice keeps the first timestamp.
func (s *Service) Archive(ctx context.Context, zoneID string) (models.Zone, error) {
	id, err := parseZoneID(zoneID)
	if err != nil {
		return models.Zone{}, err
	}

	zone, applied, err := s.store.ArchiveZone(ctx, id, s.timestamp())
	if err != nil {
		return models.Zone{}, err
	}
	if !applied {
		// Already archived or missing; either way the stored row wins.
		return s.store.GetZone(ctx, id)
	}

	s.logger.Info("zone archived", zap.String("zone_id", id.String()))
	return zone, nil
}

// Unarchive restores an archived zone.
func (s *Service) Unarchive(ctx context.Context, zoneID string) (models.Zone, error) {
	id, err := parseZoneID(zoneID)
	if err != nil {
		return models.Zone{}, err
	}

	zone, err := s.store.SetZoneArchivedAt(ctx, id, nil)
	if err != nil {
		return models.Zone{}, err
	}
	s.logger.Info("zone unarchived", zap.String("zone_id", id.String()))
	return zone, nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func parseZoneID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: zoneId must be a UUID", models.ErrValidation)
	}
	return id, nil
}
