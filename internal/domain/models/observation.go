package models

import (
	"time"

	"github.com/google/uuid"
)

// ObservationType tags how an observation was captured.
type ObservationType string

const (
	ObservationImage ObservationType = "image"
	ObservationScan  ObservationType = "scan"
)

// Observation is a single captured data point for a zone. It is never updated.
type Observation struct {
	ID         uuid.UUID       `json:"id"`
	ZoneID     uuid.UUID       `json:"zoneId"`
	Type       ObservationType `json:"type"`
	ImageURL   *string         `json:"imageUrl"`
	CapturedAt time.Time       `json:"capturedAt"`
	UploadedAt time.Time       `json:"uploadedAt"`
}
