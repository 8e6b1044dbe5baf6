// Package sqlite implements the repository contracts on an embedded SQLite
// database through gorm. It backs local runs and the service tests.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
	"github.com/mamadbah2/cropwatch/internal/repository"
)

var _ repository.Store = (*Repository)(nil)

type zoneRecord struct {
	ID         string `gorm:"primaryKey"`
	FarmID     string `gorm:"not null;uniqueIndex:idx_zones_farm_name"`
	NameKey    string `gorm:"not null;uniqueIndex:idx_zones_farm_name"`
	Name       string `gorm:"not null"`
	CropType   string `gorm:"not null"`
	ArchivedAt *time.Time
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (zoneRecord) TableName() string { return "zones" }

type observationRecord struct {
	ID         string `gorm:"primaryKey"`
	ZoneID     string `gorm:"not null;index:idx_observations_zone_uploaded"`
	Type       string `gorm:"not null"`
	ImageURL   *string
	CapturedAt time.Time `gorm:"not null"`
	UploadedAt time.Time `gorm:"not null;index:idx_observations_zone_uploaded"`
}

func (observationRecord) TableName() string { return "observations" }

type recommendationRecord struct {
	ID                 string `gorm:"primaryKey"`
	ZoneID             string `gorm:"not null;index:idx_recommendations_zone_created"`
	RecommendationType string `gorm:"not null"`
	DCIScore           int    `gorm:"not null"`
	ExplanationSummary string `gorm:"not null"`
	DecisionStatus     string `gorm:"not null;default:pending"`
	DecisionBy         *string
	DecisionNote       *string
	DecisionAt         *time.Time
	ExecutedAt         *time.Time
	CreatedAt          time.Time `gorm:"not null;index:idx_recommendations_zone_created"`
}

func (recommendationRecord) TableName() string { return "recommendations" }

type dailyReportRecord struct {
	ID               string    `gorm:"primaryKey"`
	Date             time.Time `gorm:"not null"`
	ZoneCount        int
	OKZones          int `gorm:"column:ok_zones"`
	StressedZones    int
	UnknownZones     int
	AwaitingDecision int
	CreatedAt        time.Time `gorm:"not null"`
}

func (dailyReportRecord) TableName() string { return "daily_reports" }

// Repository is the gorm-backed store.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens (or creates) the database at path and migrates the schema. Use
// ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(gormsqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: alive.
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(
		&zoneRecord{},
		&observationRecord{},
		&recommendationRecord{},
		&dailyReportRecord{},
	); err != nil {
		return nil, fmt.Errorf("automigrate sqlite: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", path))
	return &Repository{db: db, logger: logger}, nil
}

// CreateZone inserts a zone.
func (r *Repository) CreateZone(ctx context.Context, zone models.Zone) (models.Zone, error) {
	rec := zoneRecord{
		ID:         zone.ID.String(),
		FarmID:     zone.FarmID.String(),
		NameKey:    models.NameKey(zone.Name),
		Name:       zone.Name,
		CropType:   zone.CropType,
		ArchivedAt: zone.ArchivedAt,
		CreatedAt:  zone.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return models.Zone{}, fmt.Errorf("zone %q: %w", zone.Name, models.ErrDuplicateZone)
		}
		return models.Zone{}, fmt.Errorf("%w: insert zone: %w", models.ErrPersistence, err)
	}
	return rec.toModel()
}

// GetZone loads a zone by id.
func (r *Repository) GetZone(ctx context.Context, id uuid.UUID) (models.Zone, error) {
	var rec zoneRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id.String()).Take(&rec).Error; err != nil {
		return models.Zone{}, notFoundOr(err, "zone", id)
	}
	return rec.toModel()
}

// ListZones returns zones newest first.
func (r *Repository) ListZones(ctx context.Context, includeArchived bool) ([]models.Zone, error) {
	query := r.db.WithContext(ctx).Model(&zoneRecord{})
	if !includeArchived {
		query = query.Where("archived_at IS NULL")
	}

	var recs []zoneRecord
	if err := query.Order("created_at DESC").Order("id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("%w: list zones: %w", models.ErrPersistence, err)
	}

	zones := make([]models.Zone, 0, len(recs))
	for _, rec := range recs {
		zone, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

// SetZoneArchivedAt sets or clears the archive timestamp.
func (r *Repository) SetZoneArchivedAt(ctx context.Context, id uuid.UUID, archivedAt *time.Time) (models.Zone, error) {
	var rec zoneRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&zoneRecord{}).Where("id = ?", id.String()).Update("archived_at", archivedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", id.String()).Take(&rec).Error
	})
	if err != nil {
		return models.Zone{}, notFoundOr(err, "zone", id)
	}
	return rec.toModel()
}

// ArchiveZone stamps archived_at unless the zone is already archived.
func (r *Repository) ArchiveZone(ctx context.Context, id uuid.UUID, at time.Time) (models.Zone, bool, error) {
	var (
		rec     zoneRecord
		applied bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&zoneRecord{}).
			Where("id = ? AND archived_at IS NULL", id.String()).
			Update("archived_at", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Where("id = ?", id.String()).Take(&rec).Error
	})
	if err != nil {
		return models.Zone{}, false, fmt.Errorf("%w: archive zone: %w", models.ErrPersistence, err)
	}
	if !applied {
		return models.Zone{}, false, nil
	}

	zone, err := rec.toModel()
	return zone, true, err
}

// InsertObservation stores an observation.
func (r *Repository) InsertObservation(ctx context.Context, obs models.Observation) (models.Observation, error) {
	rec := observationRecord{
		ID:         obs.ID.String(),
		ZoneID:     obs.ZoneID.String(),
		Type:       string(obs.Type),
		ImageURL:   obs.ImageURL,
		CapturedAt: obs.CapturedAt,
		UploadedAt: obs.UploadedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.Observation{}, fmt.Errorf("%w: insert observation: %w", models.ErrPersistence, err)
	}
	return rec.toModel()
}

// ListObservations returns the newest observations of a zone.
func (r *Repository) ListObservations(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Observation, error) {
	var recs []observationRecord
	err := r.db.WithContext(ctx).
		Where("zone_id = ?", zoneID.String()).
		Order("uploaded_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list observations: %w", models.ErrPersistence, err)
	}

	out := make([]models.Observation, 0, len(recs))
	for _, rec := range recs {
		obs, err := rec.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, nil
}

// InsertRecommendation stores a new recommendation.
func (r *Repository) InsertRecommendation(ctx context.Context, rec models.Recommendation) (models.Recommendation, error) {
	row := recommendationRecord{
		ID:                 rec.ID.String(),
		ZoneID:             rec.ZoneID.String(),
		RecommendationType: string(rec.RecommendationType),
		DCIScore:           rec.DCIScore,
		ExplanationSummary: rec.ExplanationSummary,
		DecisionStatus:     string(rec.DecisionStatus),
		DecisionBy:         rec.DecisionBy,
		DecisionNote:       rec.DecisionNote,
		DecisionAt:         rec.DecisionAt,
		ExecutedAt:         rec.ExecutedAt,
		CreatedAt:          rec.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Recommendation{}, fmt.Errorf("%w: insert recommendation: %w", models.ErrPersistence, err)
	}
	return row.toModel()
}

// GetRecommendation loads a recommendation by id.
func (r *Repository) GetRecommendation(ctx context.Context, id uuid.UUID) (models.Recommendation, error) {
	var row recommendationRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id.String()).Take(&row).Error; err != nil {
		return models.Recommendation{}, notFoundOr(err, "recommendation", id)
	}
	return row.toModel()
}

// ListRecommendations returns the newest recommendations of a zone.
func (r *Repository) ListRecommendations(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Recommendation, error) {
	var rows []recommendationRecord
	err := r.db.WithContext(ctx).
		Where("zone_id = ?", zoneID.String()).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list recommendations: %w", models.ErrPersistence, err)
	}

	out := make([]models.Recommendation, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpdateDecision writes a transition guarded by the expected current status.
func (r *Repository) UpdateDecision(ctx context.Context, id uuid.UUID, expected models.DecisionStatus, update models.DecisionUpdate) (models.Recommendation, bool, error) {
	values := map[string]any{
		"decision_status": string(update.Status),
		"decision_by":     update.DecisionBy,
		"decision_note":   update.DecisionNote,
		"decision_at":     update.DecisionAt,
	}
	if update.ExecutedAt != nil {
		values["executed_at"] = *update.ExecutedAt
	}

	var (
		row     recommendationRecord
		applied bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&recommendationRecord{}).
			Where("id = ? AND decision_status = ?", id.String(), string(expected)).
			Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Where("id = ?", id.String()).Take(&row).Error
	})
	if err != nil {
		return models.Recommendation{}, false, fmt.Errorf("%w: update decision: %w", models.ErrPersistence, err)
	}
	if !applied {
		return models.Recommendation{}, false, nil
	}

	rec, err := row.toModel()
	return rec, true, err
}

// SaveDailyReport stores a daily report.
func (r *Repository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	rec := dailyReportRecord{
		ID:               report.ID.String(),
		Date:             report.Date,
		ZoneCount:        report.ZoneCount,
		OKZones:          report.OKZones,
		StressedZones:    report.StressedZones,
		UnknownZones:     report.UnknownZones,
		AwaitingDecision: report.AwaitingDecision,
		CreatedAt:        report.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("%w: insert daily report: %w", models.ErrPersistence, err)
	}
	return nil
}

// Close releases the underlying connection.
func (r *Repository) Close(context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (rec zoneRecord) toModel() (models.Zone, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return models.Zone{}, fmt.Errorf("%w: zone id %q: %w", models.ErrPersistence, rec.ID, err)
	}
	farmID, err := uuid.Parse(rec.FarmID)
	if err != nil {
		return models.Zone{}, fmt.Errorf("%w: farm id %q: %w", models.ErrPersistence, rec.FarmID, err)
	}
	return models.Zone{
		ID:         id,
		FarmID:     farmID,
		Name:       rec.Name,
		CropType:   rec.CropType,
		ArchivedAt: utcPtr(rec.ArchivedAt),
		CreatedAt:  rec.CreatedAt.UTC(),
	}, nil
}

func (rec observationRecord) toModel() (models.Observation, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return models.Observation{}, fmt.Errorf("%w: observation id %q: %w", models.ErrPersistence, rec.ID, err)
	}
	zoneID, err := uuid.Parse(rec.ZoneID)
	if err != nil {
		return models.Observation{}, fmt.Errorf("%w: zone id %q: %w", models.ErrPersistence, rec.ZoneID, err)
	}
	return models.Observation{
		ID:         id,
		ZoneID:     zoneID,
		Type:       models.ObservationType(rec.Type),
		ImageURL:   rec.ImageURL,
		CapturedAt: rec.CapturedAt.UTC(),
		UploadedAt: rec.UploadedAt.UTC(),
	}, nil
}

func (row recommendationRecord) toModel() (models.Recommendation, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return models.Recommendation{}, fmt.Errorf("%w: recommendation id %q: %w", models.ErrPersistence, row.ID, err)
	}
	zoneID, err := uuid.Parse(row.ZoneID)
	if err != nil {
		return models.Recommendation{}, fmt.Errorf("%w: zone id %q: %w", models.ErrPersistence, row.ZoneID, err)
	}
	return models.Recommendation{
		ID:                 id,
		ZoneID:             zoneID,
		RecommendationType: models.RecommendationType(row.RecommendationType),
		DCIScore:           row.DCIScore,
		ExplanationSummary: row.ExplanationSummary,
		DecisionStatus:     models.DecisionStatus(row.DecisionStatus),
		DecisionBy:         row.DecisionBy,
		DecisionNote:       row.DecisionNote,
		DecisionAt:         utcPtr(row.DecisionAt),
		ExecutedAt:         utcPtr(row.ExecutedAt),
		CreatedAt:          row.CreatedAt.UTC(),
	}, nil
}

func notFoundOr(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return fmt.Errorf("%w: load %s: %w", models.ErrPersistence, kind, err)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
