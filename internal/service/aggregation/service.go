// Package aggregation builds the dashboard read models: the per-zone timeline
// and the zone summary.
package aggregation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
	"github.com/mamadbah2/cropwatch/internal/service/zonestatus"
)

// TimelineLimit caps each list returned by Timeline.
const TimelineLimit = 50

// Store is the read surface the aggregator needs.
type Store interface {
	ListZones(ctx context.Context, includeArchived bool) ([]models.Zone, error)
	ListObservations(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Observation, error)
	ListRecommendations(ctx context.Context, zoneID uuid.UUID, limit int) ([]models.Recommendation, error)
}

// Service assembles read models. It keeps no state of its own.
type Service struct {
	store       Store
	deriver     zonestatus.Deriver
	concurrency int
	logger      *zap.Logger
}

// NewService wires an aggregator. concurrency bounds the per-zone fan-out of
// Summary.
func NewService(store Store, deriver zonestatus.Deriver, concurrency int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		store:       store,
		deriver:     deriver,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Timeline returns the latest observations and recommendations of a zone.
// A well-formed id of an unknown zone yields empty lists.
func (s *Service) Timeline(ctx context.Context, zoneID string) (models.Timeline, error) {
	id, err := uuid.Parse(strings.TrimSpace(zoneID))
	if err != nil {
		return models.Timeline{}, fmt.Errorf("%w: zoneId must be a UUID", models.ErrValidation)
	}

	var (
		observations    []models.Observation
		recommendations []models.Recommendation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		observations, err = s.store.ListObservations(gctx, id, TimelineLimit)
		return err
	})
	g.Go(func() error {
		var err error
		recommendations, err = s.store.ListRecommendations(gctx, id, TimelineLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Timeline{}, err
	}

	if observations == nil {
		observations = []models.Observation{}
	}
	if recommendations == nil {
		recommendations = []models.Recommendation{}
	}
	return models.Timeline{Observations: observations, Recommendations: recommendations}, nil
}

// Summary lists zones newest first with their derived status. Zones are
// processed in parallel; output order follows the zone listing and any
// per-zone failure fails the call.
func (s *Service) Summary(ctx context.Context, includeArchived bool) ([]models.ZoneSummary, error) {
	zones, err := s.store.ListZones(ctx, includeArchived)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ZoneSummary, len(zones))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, zone := range zones {
		i, zone := i, zone
		g.Go(func() error {
			recs, err := s.store.ListRecommendations(gctx, zone.ID, 1)
			if err != nil {
				return fmt.Errorf("zone %s: %w", zone.ID, err)
			}
			status, latest := s.deriver.Derive(recs)
			summaries[i] = models.ZoneSummary{
				ID:                   zone.ID,
				Name:                 zone.Name,
				CropType:             zone.CropType,
				ArchivedAt:           zone.ArchivedAt,
				CreatedAt:            zone.CreatedAt,
				ZoneStatus:           status,
				LatestRecommendation: latest,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("summary aggregation failed", zap.Error(err))
		return nil, err
	}

	return summaries, nil
}
