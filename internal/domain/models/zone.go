package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Zone is a spatial subdivision of a farm. Zones are archived, never deleted,
// because observations and recommendations keep referencing them.
type Zone struct {
	ID         uuid.UUID  `json:"id"`
	FarmID     uuid.UUID  `json:"farmId"`
	Name       string     `json:"name"`
	CropType   string     `json:"cropType"`
	ArchivedAt *time.Time `json:"archivedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Archived reports whether the zone is soft-deleted.
func (z Zone) Archived() bool {
	return z.ArchivedAt != nil
}

// NameKey returns the normalized name used for the per-farm uniqueness check.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
