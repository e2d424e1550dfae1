package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/mixboard/gateway/internal/model"
)

const TaskTypeGenerate = "mashup:generate"

var (
	// ErrJobNotFound is returned when no job record exists for an id.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotCompleted is returned when a result is requested before the
	// job reached a terminal state.
	ErrJobNotCompleted = errors.New("job not completed")
)

// MashupService owns generation job bookkeeping: it queues cycles and
// tracks their records in redis.
type MashupService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
	inFlight    func() bool
}

// NewMashupService creates the service. inFlight reports whether the
// orchestrator is mid-cycle so overlapping triggers are rejected rather
// than interleaved.
func NewMashupService(redisClient *redis.Client, asynqClient *asynq.Client, inFlight func() bool) *MashupService {
	return &MashupService{
		redis:       redisClient,
		asynqClient: asynqClient,
		inFlight:    inFlight,
	}
}

// ErrGenerationInFlight rejects a generate request while a cycle runs.
var ErrGenerationInFlight = errors.New("generation already in progress")

// StartGenerate queues one generation cycle.
func (s *MashupService) StartGenerate(ctx context.Context, req *model.GenerateStartRequest) (*model.GenerateStartResponse, error) {
	if s.inFlight != nil && s.inFlight() {
		return nil, ErrGenerationInFlight
	}

	jobID := uuid.New().String()
	now := time.Now()

	job := &model.Job{
		ID:        jobID,
		Status:    model.JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
	}

	payload := &model.GenerateJobPayload{
		SessionID:     req.SessionID,
		LastSessionID: req.LastSessionID,
		Email:         req.Email,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	job.Payload = payloadBytes

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newGenerateTask(jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// MaxRetry 0: the cycle carries its own bounded retry internally and a
	// replayed cycle would resubmit an already-merged layout.
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("mashup"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.GenerateStartResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the current status of a generation job.
func (s *MashupService) GetStatus(ctx context.Context, jobID string) (*model.GenerateStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.GenerateStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// GetResult returns the merged layout of a completed generation job.
func (s *MashupService) GetResult(ctx context.Context, jobID string) (*model.GenerateResultResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusSucceeded {
		return nil, ErrJobNotCompleted
	}

	var result model.GenerateResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &model.GenerateResultResponse{
		JobID:          job.ID,
		Layout:         result.Layout,
		DroppedRegions: result.DroppedRegions,
		DroppedCount:   len(result.DroppedRegions),
		MashupURL:      result.MashupURL,
		Tempo:          result.Tempo,
		CompletedAt:    result.CompletedAt,
	}, nil
}

// UpdateJobProgress updates job progress (called by worker)
func (s *MashupService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Progress = progress
	job.CurrentStep = step

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	return s.saveJob(ctx, job)
}

// CompleteJob marks a job succeeded and stores its result (called by worker)
func (s *MashupService) CompleteJob(ctx context.Context, jobID string, result *model.GenerateResult) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// FailJob marks a job failed (called by worker)
func (s *MashupService) FailJob(ctx context.Context, jobID string, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// Helper methods

func (s *MashupService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, 24*time.Hour).Err()
}

func (s *MashupService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("job:%s", jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func newGenerateTask(jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": payload,
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGenerate, data), nil
}
