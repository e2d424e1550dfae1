package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStartRequest represents the request to open a generator session
type SessionStartRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// SessionStartResponse represents a newly created session
type SessionStartResponse struct {
	SessionID string `json:"sessionId"`
}

// AddRegionRequest represents the request to place a region on a lane
type AddRegionRequest struct {
	Lane   Lane   `json:"lane" validate:"required,oneof=vocals other bass drums"`
	Start  int    `json:"start" validate:"min=0"`
	Length int    `json:"length" validate:"required,min=1"`
	SongID string `json:"songId" validate:"required"`
}

// AddRegionResponse carries the id of the placed region
type AddRegionResponse struct {
	Region Region `json:"region"`
}

// UpdateRegionRequest represents a move/resize of an existing region
type UpdateRegionRequest struct {
	Start  int   `json:"start" validate:"min=0"`
	Length int   `json:"length" validate:"required,min=1"`
	Lane   *Lane `json:"lane,omitempty" validate:"omitempty,oneof=vocals other bass drums"`
}

// LaneStateRequest toggles mute/solo on a lane
type LaneStateRequest struct {
	State LaneState `json:"state" validate:"required,oneof=default mute solo"`
}

// TotalBeatsRequest changes the timeline capacity
type TotalBeatsRequest struct {
	TotalBeats int `json:"totalBeats" validate:"required,min=8,max=128"`
}

// LayoutResponse is the canvas snapshot plus the end of its last region
type LayoutResponse struct {
	Layout   Layout `json:"layout"`
	LastBeat int    `json:"lastBeat"`
}

// SongRequest adds or removes a library song on the generator
type SongRequest struct {
	URL   string `json:"url" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// GenerateStartRequest starts one generation cycle
type GenerateStartRequest struct {
	SessionID     string `json:"sessionId" validate:"required,uuid"`
	LastSessionID string `json:"lastSessionId" validate:"omitempty,uuid"`
	Email         string `json:"email" validate:"required,email"`
}

// GenerateStartResponse acknowledges a queued cycle
type GenerateStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// GenerateStatusResponse reports cycle progress
type GenerateStatusResponse struct {
	JobID       string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// GenerateResultResponse carries the merged layout of a finished cycle
type GenerateResultResponse struct {
	JobID          string      `json:"jobId"`
	Layout         Layout      `json:"layout"`
	DroppedRegions []uuid.UUID `json:"droppedRegions"`
	DroppedCount   int         `json:"droppedCount"`
	MashupURL      string      `json:"mashupUrl,omitempty"`
	Tempo          float64     `json:"tempo,omitempty"`
	CompletedAt    time.Time   `json:"completedAt"`
}
