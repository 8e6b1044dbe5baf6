// Package postgres implements the repository contracts on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
	"github.com/mamadbah2/cropwatch/internal/repository"
)

const uniqueViolation = "23505"

const (
	zoneColumns           = `id, farm_id, name, crop_type, archived_at, created_at`
	observationColumns    = `id, zone_id, type, image_url, captured_at, uploaded_at`
	recommendationColumns = `id, zone_id, recommendation_type, dci_score, explanation_summary,
		decision_status, decision_by, decision_note, decision_at, executed_at, created_at`
)

var _ repository.Store = (*Repository)(nil)

// Repository is the pgx-backed store.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to databaseURL, verifies the connection and applies migrations.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(databaseURL, logger); err != nil {
		pool.Close()
		return nil, err
	}

	return &Repository{pool: pool, logger: logger}, nil
}

// CreateZone inserts a zone. The unique index on (farm_id, lower(name)) spans
// archived rows too.
func (r *Repository) CreateZone(ctx context.Context, zone models.Zone) (models.Zone, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO zones (id, farm_id, name, crop_type, archived_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+zoneColumns,
		zone.ID, zone.FarmID, zone.Name, zone.CropType, zone.ArchivedAt, zone.CreatedAt)

	created, err := scanZone(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Zone{}, fmt.Errorf("zone %q: %w", zone.Name, models.ErrDuplicateZone)
		}
		return models.Zone{}, fmt.Errorf("%w: insert zone: %w", models.ErrPersistence, err)
	}
	return created, nil
}

// GetZone loads a zone by id.
func (r *Repository) GetZone(ctx context.Context, id uuid.UUID) (models.Zone, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+zoneColumns+` FROM zones WHERE id = $1`, id)
	zone, err := scanZone(row)
	if err != nil {
		return models.Zone{}, notFoundOr(err, "zone", id)
	}
	return zone, nil
}

// ListZones returns zones newest first.
func (r *Repository) ListZones(ctx context.Context, includeArchived bool) ([]models.Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones`
	if !includeArchived {
		query += ` WHERE archived_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list zones: %w", models.ErrPersistence, err)
	}
	defer rows.Close()

	zones := []models.Zone{}
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan zone: %w", models.ErrPersistence, err)
		}
		zones = append(zones, zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate zones: %w", models.ErrPersistence, err)
	}
	return zones, nil
}

// SetZoneArchivedAt sets or clears the archive timestamp.
func (r *Repository) SetZoneArchivedAt(ctx context.Context, id uuid.UUID, archivedAt *time.Time) (models.Zone, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE zones SET archived_at = $2 WHERE id = $1
		RETURNING `+zoneColumns, id, archivedAt)
	zone, err := scanZone(row)
	if err != nil {
		return models.Zone{}, notFoundOr(err, "zone", id)
	}
	return zone, nil
}

// ArchiveZone stamps archived_at unless the zone is already archived.
func (r *Repository) ArchiveZone(ctx context.Context, id uuid.UUID, at time.Time) (models.Zone, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE zones SET archived_at = $2 WHERE id = $1 AND archived_at IS NULL
		RETURNING `+zoneColumns, id, at)
	zone, err := scanZone(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Zone{}, false, nil
		}
		return models.Zone{}, false, fmt.Errorf("%w: archive zone: %w", models.ErrPersistence, err)
	}
	return zone, true, nil
}

// InsertObservation stores an observation.
func (r *Repository) InsertObservation(ctx context.Context, obs models.Observation) (models.Observation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO observations (id, zone_id, type, image_url, captured_at, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+observationColumns,
		obs.ID, obs.ZoneID, string(obs.Type), obs.ImageURL, obs.CapturedAt, obs.UploadedAt)

	created, err := scanObservation(row)
	if err != nil {
		return models.Observation{}, fmt.Errorf("%w: insert observation: %w", models.ErrPersistence, err)
	}
	return created, nil
}

// ListObservations returns the newest observations of a zone.
func (r *Repository) ListObservations(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Observation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+observationColumns+` FROM observations
		WHERE zone_id = $1
		ORDER BY uploaded_at DESC, id DESC
		LIMIT $2`, zoneID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list observations: %w", models.ErrPersistence, err)
	}
	defer rows.Close()

	out := []models.Observation{}
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan observation: %w", models.ErrPersistence, err)
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate observations: %w", models.ErrPersistence, err)
	}
	return out, nil
}

// InsertRecommendation stores a new recommendation.
func (r *Repository) InsertRecommendation(ctx context.Context, rec models.Recommendation) (models.Recommendation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO recommendations (id, zone_id, recommendation_type, dci_score, explanation_summary,
			decision_status, decision_by, decision_note, decision_at, executed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+recommendationColumns,
		rec.ID, rec.ZoneID, string(rec.RecommendationType), rec.DCIScore, rec.ExplanationSummary,
		string(rec.DecisionStatus), rec.DecisionBy, rec.DecisionNote, rec.DecisionAt, rec.ExecutedAt, rec.CreatedAt)

	created, err := scanRecommendation(row)
	if err != nil {
		return models.Recommendation{}, fmt.Errorf("%w: insert recommendation: %w", models.ErrPersistence, err)
	}
	return created, nil
}

// GetRecommendation loads a recommendation by id.
func (r *Repository) GetRecommendation(ctx context.Context, id uuid.UUID) (models.Recommendation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recommendationColumns+` FROM recommendations WHERE id = $1`, id)
	rec, err := scanRecommendation(row)
	if err != nil {
		return models.Recommendation{}, notFoundOr(err, "recommendation", id)
	}
	return rec, nil
}

// ListRecommendations returns the newest recommendations of a zone.
func (r *Repository) ListRecommendations(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Recommendation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recommendationColumns+` FROM recommendations
		WHERE zone_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, zoneID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list recommendations: %w", models.ErrPersistence, err)
	}
	defer rows.Close()

	out := []models.Recommendation{}
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan recommendation: %w", models.ErrPersistence, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate recommendations: %w", models.ErrPersistence, err)
	}
	return out, nil
}

// UpdateDecision is a single compare-and-set on decision_status.
func (r *Repository) UpdateDecision(ctx context.Context, id uuid.UUID, expected models.DecisionStatus, update models.DecisionUpdate) (models.Recommendation, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE recommendations
		SET decision_status = $3,
			decision_by = $4,
			decision_note = $5,
			decision_at = $6,
			executed_at = COALESCE($7, executed_at)
		WHERE id = $1 AND decision_status = $2
		RETURNING `+recommendationColumns,
		id, string(expected), string(update.Status), update.DecisionBy, update.DecisionNote, update.DecisionAt, update.ExecutedAt)

	rec, err := scanRecommendation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Recommendation{}, false, nil
		}
		return models.Recommendation{}, false, fmt.Errorf("%w: update decision: %w", models.ErrPersistence, err)
	}
	return rec, true, nil
}

// SaveDailyReport stores a daily report.
func (r *Repository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO daily_reports (id, date, zone_count, ok_zones, stressed_zones, unknown_zones, awaiting_decision, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.ID, report.Date, report.ZoneCount, report.OKZones, report.StressedZones,
		report.UnknownZones, report.AwaitingDecision, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert daily report: %w", models.ErrPersistence, err)
	}
	return nil
}

// Close releases the pool.
func (r *Repository) Close(context.Context) error {
	r.pool.Close()
	return nil
}

func scanZone(row pgx.Row) (models.Zone, error) {
	var zone models.Zone
	if err := row.Scan(&zone.ID, &zone.FarmID, &zone.Name, &zone.CropType, &zone.ArchivedAt, &zone.CreatedAt); err != nil {
		return models.Zone{}, err
	}
	zone.CreatedAt = zone.CreatedAt.UTC()
	zone.ArchivedAt = utcPtr(zone.ArchivedAt)
	return zone, nil
}

func scanObservation(row pgx.Row) (models.Observation, error) {
	var (
		obs     models.Observation
		obsType string
	)
	if err := row.Scan(&obs.ID, &obs.ZoneID, &obsType, &obs.ImageURL, &obs.CapturedAt, &obs.UploadedAt); err != nil {
		return models.Observation{}, err
	}
	obs.Type = models.ObservationType(obsType)
	obs.CapturedAt = obs.CapturedAt.UTC()
	obs.UploadedAt = obs.UploadedAt.UTC()
	return obs, nil
}

func scanRecommendation(row pgx.Row) (models.Recommendation, error) {
	var (
		rec            models.Recommendation
		recType        string
		decisionStatus string
	)
	err := row.Scan(
		&rec.ID, &rec.ZoneID, &recType, &rec.DCIScore, &rec.ExplanationSummary,
		&decisionStatus, &rec.DecisionBy, &rec.DecisionNote, &rec.DecisionAt, &rec.ExecutedAt, &rec.CreatedAt,
	)
	if err != nil {
		return models.Recommendation{}, err
	}
	rec.RecommendationType = models.RecommendationType(recType)
	rec.DecisionStatus = models.DecisionStatus(decisionStatus)
	rec.DecisionAt = utcPtr(rec.DecisionAt)
	rec.ExecutedAt = utcPtr(rec.ExecutedAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func notFoundOr(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	return fmt.Errorf("%w: load %s: %w", models.ErrPersistence, kind, err)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
