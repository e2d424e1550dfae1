package service

import (
	"context"
	"fmt"
	"log"

	"github.com/mixboard/gateway/internal/client"
	"github.com/mixboard/gateway/internal/model"
)

// LibraryService manages the song library on the generator. Adding a song
// kicks off remote stem separation, so the add call polls the resulting
// task to completion before reporting success.
type LibraryService struct {
	generator client.Generator
}

func NewLibraryService(g client.Generator) *LibraryService {
	return &LibraryService{generator: g}
}

// AddSong registers a song with the generator and waits for its
// separation task to finish.
func (s *LibraryService) AddSong(ctx context.Context, req *model.SongRequest) error {
	taskID, err := s.generator.AddSong(ctx, req.URL, req.Email)
	if err != nil {
		return fmt.Errorf("failed to add song: %w", err)
	}

	log.Printf("[Library] song %s queued for separation, task %s", req.URL, taskID)

	status, err := s.generator.PollStatus(ctx, taskID, func(progress int, description string) {
		log.Printf("[Library] task %s: %d%% %s", taskID, progress, description)
	})
	if err != nil {
		return fmt.Errorf("song separation did not complete: %w", err)
	}
	if status.RequestStatus != model.RequestStatusSuccess {
		return fmt.Errorf("song separation ended with status %s", status.RequestStatus)
	}
	return nil
}

// RemoveSong drops a song from the generator library.
func (s *LibraryService) RemoveSong(ctx context.Context, req *model.SongRequest) error {
	if err := s.generator.RemoveSong(ctx, req.URL, req.Email); err != nil {
		return fmt.Errorf("failed to remove song: %w", err)
	}
	return nil
}
