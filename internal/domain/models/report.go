package models

import (
	"time"

	"github.com/google/uuid"
)

// DailyReport is the aggregated zone health snapshot produced by the scheduler.
type DailyReport struct {
	ID               uuid.UUID `json:"id"`
	Date             time.Time `json:"date"`
	ZoneCount        int       `json:"zoneCount"`
	OKZones          int       `json:"okZones"`
	StressedZones    int       `json:"stressedZones"`
	UnknownZones     int       `json:"unknownZones"`
	AwaitingDecision int       `json:"awaitingDecision"`
	CreatedAt        time.Time `json:"createdAt"`
}
