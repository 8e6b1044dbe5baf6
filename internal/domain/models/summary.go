package models

import (
	"time"

	"github.com/google/uuid"
)

// ZoneStatus is the health label derived from a zone's latest recommendation.
type ZoneStatus string

const (
	ZoneStatusUnknown  ZoneStatus = "unknown"
	ZoneStatusStressed ZoneStatus = "stressed"
	ZoneStatusOK       ZoneStatus = "ok"
)

// ZoneSummary is the dashboard read model for one zone.
type ZoneSummary struct {
	ID                   uuid.UUID       `json:"id"`
	Name                 string          `json:"name"`
	CropType             string          `json:"cropType"`
	ArchivedAt           *time.Time      `json:"archivedAt"`
	CreatedAt            time.Time       `json:"createdAt"`
	ZoneStatus           ZoneStatus      `json:"zoneStatus"`
	LatestRecommendation *Recommendation `json:"latestRecommendation"`
}

// Timeline lists the most recent activity recorded for a zone.
type Timeline struct {
	Observations    []Observation    `json:"observations"`
	Recommendations []Recommendation `json:"recommendations"`
}
