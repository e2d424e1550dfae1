package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job is the local record of one generation cycle. Payload and Result are
// raw JSON so the record round-trips through redis without re-encoding.
type Job struct {
	ID          string          `json:"id"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	CurrentStep string          `json:"currentStep,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// GenerateJobPayload is the data carried by a queued generation cycle.
type GenerateJobPayload struct {
	SessionID     string `json:"sessionId"`
	LastSessionID string `json:"lastSessionId,omitempty"`
	Email         string `json:"email"`
}

// GenerateResult is the stored result of a successful cycle.
type GenerateResult struct {
	SessionID      string      `json:"sessionId"`
	Layout         Layout      `json:"layout"`
	DroppedRegions []uuid.UUID `json:"droppedRegions"`
	MashupURL      string      `json:"mashupUrl,omitempty"`
	Tempo          float64     `json:"tempo,omitempty"`
	CompletedAt    time.Time   `json:"completedAt"`
}
