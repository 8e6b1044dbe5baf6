// Package recommendations generates scored recommendations and drives their
// decision lifecycle.
package recommendations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
	"github.com/mamadbah2/cropwatch/internal/service/scoring"
)

// Store is the persistence surface the service needs.
type Store interface {
	GetZone(ctx context.Context, id uuid.UUID) (models.Zone, error)
	InsertRecommendation(ctx context.Context, rec models.Recommendation) (models.Recommendation, error)
	GetRecommendation(ctx context.Context, id uuid.UUID) (models.Recommendation, error)
	UpdateDecision(ctx context.Context, id uuid.UUID, expected models.DecisionStatus, update models.DecisionUpdate) (models.Recommendation, bool, error)
}

// DecisionRequest is an operator decision on a recommendation.
type DecisionRequest struct {
	RecommendationID string  `json:"recommendationId"`
	Action           string  `json:"action"`
	DecisionBy       *string `json:"decisionBy"`
	DecisionNote     *string `json:"decisionNote"`
}

// Service coordinates scoring and decisions.
type Service struct {
	store  Store
	scorer scoring.Scorer
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a recommendation service. A nil scorer falls back to the
// random scorer.
func NewService(store Store, scorer scoring.Scorer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scorer == nil {
		scorer = scoring.NewRandomScorer()
	}
	return &Service{
		store:  store,
		scorer: scorer,
		logger: logger,
		now:    time.Now,
	}
}

// Generate scores a zone and stores a new pending recommendation for it.
func (s *Service) Generate(ctx context.Context, zoneID string) (models.Recommendation, error) {
	id, err := uuid.Parse(strings.TrimSpace(zoneID))
	if err != nil {
		return models.Recommendation{}, fmt.Errorf("%w: zoneId must be a UUID", models.ErrValidation)
	}

	if _, err := s.store.GetZone(ctx, id); err != nil {
		return models.Recommendation{}, err
	}

	score := s.scorer.Score(id)
	rec := models.Recommendation{
		ID:                 uuid.New(),
		ZoneID:             id,
		RecommendationType: score.RecommendationType,
		DCIScore:           score.DCIScore,
		ExplanationSummary: score.ExplanationSummary,
		DecisionStatus:     models.DecisionPending,
		CreatedAt:          s.timestamp(),
	}

	created, err := s.store.InsertRecommendation(ctx, rec)
	if err != nil {
		return models.Recommendation{}, err
	}

	s.logger.Info("recommendation generated",
		zap.String("recommendation_id", created.ID.String()),
		zap.String("zone_id", id.String()),
		zap.Int("dci_score", created.DCIScore),
		zap.String("type", string(created.RecommendationType)),
	)
	return created, nil
}

// ApplyDecision moves a recommendation along its lifecycle. The write is
// conditional on the status the action expects, so of two concurrent
// decisions at most one lands; the other gets ErrIllegalTransition.
func (s *Service) ApplyDecision(ctx context.Context, req DecisionRequest) (models.Recommendation, error) {
	id, err := uuid.Parse(strings.TrimSpace(req.RecommendationID))
	if err != nil {
		return models.Recommendation{}, fmt.Errorf("%w: recommendationId must be a UUID", models.ErrValidation)
	}
	action, err := models.ParseDecisionAction(req.Action)
	if err != nil {
		return models.Recommendation{}, err
	}
	t := transitions[action]

	now := s.timestamp()
	update := models.DecisionUpdate{
		Status:       t.to,
		DecisionBy:   nonBlank(req.DecisionBy),
		DecisionNote: nonBlank(req.DecisionNote),
		DecisionAt:   now,
	}
	if t.to == models.DecisionExecuted {
		update.ExecutedAt = &now
	}

	updated, applied, err := s.store.UpdateDecision(ctx, id, t.from, update)
	if err != nil {
		return models.Recommendation{}, err
	}
	if !applied {
		current, err := s.store.GetRecommendation(ctx, id)
		if err != nil {
			return models.Recommendation{}, err
		}
		s.logger.Warn("decision rejected",
			zap.String("recommendation_id", id.String()),
			zap.String("action", string(action)),
			zap.String("status", string(current.DecisionStatus)),
		)
		return models.Recommendation{}, fmt.Errorf("%w: cannot %s a recommendation that is %s",
			models.ErrIllegalTransition, action, current.DecisionStatus)
	}

	s.logger.Info("decision applied",
		zap.String("recommendation_id", id.String()),
		zap.String("action", string(action)),
		zap.String("status", string(updated.DecisionStatus)),
	)
	return updated, nil
}

// timestamp is truncated to the precision every store keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func nonBlank(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
