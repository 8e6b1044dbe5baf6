// Package zonestatus labels a zone from its most recent recommendation.
package zonestatus

import (
	"github.com/mamadbah2/cropwatch/internal/domain/models"
)

// DefaultThreshold is used when no STRESS_THRESHOLD is configured.
const DefaultThreshold = 70

// Deriver maps recommendations to a zone status. The threshold is fixed at
// construction.
type Deriver struct {
	threshold int
}

// NewDeriver builds a deriver for the given stress threshold.
func NewDeriver(threshold int) Deriver {
	return Deriver{threshold: threshold}
}

// Threshold returns the configured stress threshold.
func (d Deriver) Threshold() int {
	return d.threshold
}

// Derive picks the latest recommendation (max CreatedAt, ties broken by the
// greatest ID) and labels the zone: unknown without any recommendation,
// stressed when its score is below the threshold, ok otherwise.
//
// A high score means high confidence that something needs attention, yet a
// low score is what flags the zone as stressed. Consumers rely on the current
// labels so the comparison stays as is.
func (d Deriver) Derive(recs []models.Recommendation) (models.ZoneStatus, *models.Recommendation) {
	latest := Latest(recs)
	if latest == nil {
		return models.ZoneStatusUnknown, nil
	}
	if latest.DCIScore < d.threshold {
		return models.ZoneStatusStressed, latest
	}
	return models.ZoneStatusOK, latest
}

// Latest returns a copy of the newest recommendation or nil for an empty slice.
func Latest(recs []models.Recommendation) *models.Recommendation {
	if len(recs) == 0 {
		return nil
	}

	best := 0
	for i := 1; i < len(recs); i++ {
		if newer(recs[i], recs[best]) {
			best = i
		}
	}

	latest := recs[best]
	return &latest
}

func newer(a, b models.Recommendation) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() > b.ID.String()
}
