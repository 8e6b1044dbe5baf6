package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecommendationType enumerates the suggested actions.
type RecommendationType string

const (
	RecommendationInspect   RecommendationType = "inspect"
	RecommendationIrrigate  RecommendationType = "irrigate"
	RecommendationPestCheck RecommendationType = "pest_check"
)

// DecisionStatus is the position of a recommendation in its decision lifecycle.
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "pending"
	DecisionApproved DecisionStatus = "approved"
	DecisionRejected DecisionStatus = "rejected"
	DecisionExecuted DecisionStatus = "executed"
)

// Terminal reports whether no further decision can be applied.
func (s DecisionStatus) Terminal() bool {
	return s == DecisionRejected || s == DecisionExecuted
}

// DecisionAction is an operator request against a recommendation.
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
	ActionExecute DecisionAction = "execute"
)

// ParseDecisionAction validates a raw action string.
func ParseDecisionAction(raw string) (DecisionAction, error) {
	switch action := DecisionAction(raw); action {
	case ActionApprove, ActionReject, ActionExecute:
		return action, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
}

// Score is the raw output of a scoring strategy before it is persisted.
type Score struct {
	DCIScore           int                `json:"dciScore"`
	RecommendationType RecommendationType `json:"recommendationType"`
	ExplanationSummary string             `json:"explanationSummary"`
}

// Recommendation is a scored, decision-tracked suggested action for a zone.
type Recommendation struct {
	ID                 uuid.UUID          `json:"id"`
	ZoneID             uuid.UUID          `json:"zoneId"`
	RecommendationType RecommendationType `json:"recommendationType"`
	DCIScore           int                `json:"dciScore"`
	ExplanationSummary string             `json:"explanationSummary"`
	DecisionStatus     DecisionStatus     `json:"decisionStatus"`
	DecisionBy         *string            `json:"decisionBy"`
	DecisionNote       *string            `json:"decisionNote"`
	DecisionAt         *time.Time         `json:"decisionAt"`
	ExecutedAt         *time.Time         `json:"executedAt"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// DecisionUpdate carries the fields written by a single lifecycle transition.
type DecisionUpdate struct {
	Status       DecisionStatus
	DecisionBy   *string
	DecisionNote *string
	DecisionAt   time.Time
	ExecutedAt   *time.Time
}
