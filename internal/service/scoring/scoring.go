// Package scoring produces the Decision Confidence Index for a zone.
package scoring

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

// Score bounds and the branch point of the default strategy.
const (
	MinScore       = 65
	MaxScore       = 90
	InspectAbove   = 80
	explainInspect = "High-confidence stress indicators detected in the latest scan. Recommend physical inspection."
	explainPest    = "Moderate confidence irregular patterns detected. Recommend pest check or additional scans."
)

// Scorer produces a recommendation payload for a zone. Implementations must
// return DCIScore within [0,100] and never fail.
type Scorer interface {
	Score(zoneID uuid.UUID) models.Score
}

// RandomScorer draws a score uniformly from [MinScore, MaxScore]. It ignores
// the zone and keeps no state between calls.
type RandomScorer struct {
	intN func(n int) int
}

// NewRandomScorer returns a scorer backed by the global goroutine-safe source.
func NewRandomScorer() *RandomScorer {
	return &RandomScorer{intN: rand.Intn}
}

// Score implements Scorer.
func (s *RandomScorer) Score(uuid.UUID) models.Score {
	dci := MinScore + s.intN(MaxScore-MinScore+1)
	recType, explanation := Classify(dci)
	return models.Score{
		DCIScore:           dci,
		RecommendationType: recType,
		ExplanationSummary: explanation,
	}
}

// Classify maps a score to its recommendation type and fixed explanation.
// Only inspect and pest_check are produced; irrigate has no trigger yet.
func Classify(dci int) (models.RecommendationType, string) {
	if dci > InspectAbove {
		return models.RecommendationInspect, explainInspect
	}
	return models.RecommendationPestCheck, explainPest
}
