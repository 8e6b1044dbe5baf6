// Package repository declares the persistence contracts shared by every store
// driver. Implementations live in the postgres, mongodb and sqlite subpackages.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

// ZoneRepository persists zones.
type ZoneRepository interface {
	// CreateZone inserts a zone. A name already used on the farm, compared
	// case-insensitively and including archived zones, yields models.ErrDuplicateZone.
	CreateZone(ctx context.Context, zone models.Zone) (models.Zone, error)
	GetZone(ctx context.Context, id uuid.UUID) (models.Zone, error)
	// ListZones returns zones ordered by CreatedAt descending.
	ListZones(ctx context.Context, includeArchived bool) ([]models.Zone, error)
	// SetZoneArchivedAt sets or clears ArchivedAt and returns the updated zone.
	SetZoneArchivedAt(ctx context.Context, id uuid.UUID, archivedAt *time.Time) (models.Zone, error)
	// ArchiveZone sets ArchivedAt only while it is still null. applied is false
	// when no active zone matched.
	ArchiveZone(ctx context.Context, id uuid.UUID, at time.Time) (zone models.Zone, applied bool, err error)
}

// ObservationRepository persists observations.
type ObservationRepository interface {
	InsertObservation(ctx context.Context, obs models.Observation) (models.Observation, error)
	// ListObservations returns at most limit observations ordered by UploadedAt descending.
	ListObservations(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Observation, error)
}

// RecommendationRepository persists recommendations.
type RecommendationRepository interface {
	InsertRecommendation(ctx context.Context, rec models.Recommendation) (models.Recommendation, error)
	GetRecommendation(ctx context.Context, id uuid.UUID) (models.Recommendation, error)
	// ListRecommendations returns at most limit recommendations ordered by
	// CreatedAt descending, ties broken by ID descending.
	ListRecommendations(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Recommendation, error)
	// UpdateDecision applies update only if the stored status still equals
	// expected. applied is false when no row matched; the caller decides whether
	// that means the row is missing or the transition is illegal.
	UpdateDecision(ctx context.Context, id uuid.UUID, expected models.DecisionStatus, update models.DecisionUpdate) (rec models.Recommendation, applied bool, err error)
}

// ReportRepository persists daily health reports.
type ReportRepository interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// Store bundles every repository a driver provides.
type Store interface {
	ZoneRepository
	ObservationRepository
	RecommendationRepository
	ReportRepository
	Close(ctx context.Context) error
}
