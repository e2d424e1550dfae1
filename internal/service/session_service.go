package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mixboard/gateway/internal/client"
)

// SessionService tracks the active generator session. Session IDs are
// minted locally; the generator only needs to know who the session
// belongs to. The previous session ID is kept so a generation request can
// tell the generator which session's stems it may reuse.
type SessionService struct {
	generator client.Generator

	mu        sync.Mutex
	sessionID string
	lastID    string
}

func NewSessionService(g client.Generator) *SessionService {
	return &SessionService{generator: g}
}

// Start opens a new session for the given email and returns its ID. Any
// existing session becomes the last session.
func (s *SessionService) Start(ctx context.Context, email string) (string, error) {
	if err := s.generator.NewSession(ctx, email); err != nil {
		return "", fmt.Errorf("failed to open session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID = s.sessionID
	s.sessionID = uuid.New().String()
	return s.sessionID, nil
}

// Current returns the active and previous session IDs.
func (s *SessionService) Current() (sessionID, lastSessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.lastID
}
