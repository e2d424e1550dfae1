package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/mixboard/gateway/internal/client"
	"github.com/mixboard/gateway/internal/metrics"
	"github.com/mixboard/gateway/internal/model"
	"github.com/mixboard/gateway/internal/orchestrator"
	"github.com/mixboard/gateway/internal/service"
	"github.com/mixboard/gateway/internal/websocket"
	"github.com/mixboard/gateway/pkg/response"
)

// MashupWorker processes generation jobs: it runs the full cycle through
// the orchestrator and relays its callbacks to the job record and the
// job's WebSocket subscribers.
type MashupWorker struct {
	mashupService *service.MashupService
	orch          *orchestrator.Orchestrator
	generator     client.Generator
	storage       client.StorageClient // nil when R2 is not configured
	hub           *websocket.Hub
	metrics       *metrics.Metrics

	// Key of the last uploaded mix, retired on the next upload. The queue
	// runs one job at a time, so no lock guards it.
	lastMashupKey string
}

// NewMashupWorker creates a new mashup worker
func NewMashupWorker(
	mashupService *service.MashupService,
	orch *orchestrator.Orchestrator,
	generator client.Generator,
	storage client.StorageClient,
	hub *websocket.Hub,
	m *metrics.Metrics,
) *MashupWorker {
	return &MashupWorker{
		mashupService: mashupService,
		orch:          orch,
		generator:     generator,
		storage:       storage,
		hub:           hub,
		metrics:       m,
	}
}

// cycleObserver forwards orchestrator callbacks for one job.
type cycleObserver struct {
	w     *MashupWorker
	ctx   context.Context
	jobID string
}

func (o *cycleObserver) OnProgress(progress int, step string) {
	if err := o.w.mashupService.UpdateJobProgress(o.ctx, o.jobID, progress, step); err != nil {
		log.Printf("Failed to update progress: %v", err)
	}
	o.w.hub.BroadcastProgress(o.jobID, progress, model.JobStatusRunning, step)
}

func (o *cycleObserver) OnRegionReady(regionID uuid.UUID, fetched, total int) {
	o.w.metrics.RegionsFetched.Inc()
	o.w.hub.BroadcastRegionReady(o.jobID, regionID, fetched, total)
}

// ProcessTask handles one queued generation cycle
func (w *MashupWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting generation job: %s", jobID)

	var payload model.GenerateJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, response.CodeJobFailed, "Invalid payload")
		return fmt.Errorf("failed to unmarshal generate payload: %w", err)
	}

	w.metrics.CycleInFlight.Set(1)
	defer w.metrics.CycleInFlight.Set(0)
	start := time.Now()

	params := orchestrator.CycleParams{
		SessionID:     payload.SessionID,
		LastSessionID: payload.LastSessionID,
		Email:         payload.Email,
	}

	cycle, err := w.orch.RunCycle(ctx, params, &cycleObserver{w: w, ctx: ctx, jobID: jobID})
	if err != nil {
		w.metrics.ObserveCycle("failed", time.Since(start).Seconds())
		if errors.Is(err, orchestrator.ErrCycleInFlight) {
			w.failJob(ctx, jobID, response.CodeCycleInFlight, "A generation cycle is already running")
		} else {
			w.failJob(ctx, jobID, response.CodeGeneratorError, err.Error())
		}
		return err
	}

	w.metrics.RegionsDropped.Add(float64(len(cycle.DroppedRegions)))

	result := &model.GenerateResult{
		SessionID:      payload.SessionID,
		Layout:         cycle.Layout,
		DroppedRegions: cycle.DroppedRegions,
		Tempo:          cycle.Tempo,
		CompletedAt:    time.Now(),
	}

	// The full mix is best effort: the merged layout is already usable, so
	// a mashup fetch or upload failure does not fail the job.
	if cycle.TaskID != "" {
		if url, err := w.fetchMashup(ctx, jobID, cycle.TaskID); err != nil {
			log.Printf("Job %s: mashup fetch skipped: %v", jobID, err)
		} else {
			result.MashupURL = url
		}
	}

	if err := w.mashupService.CompleteJob(ctx, jobID, result); err != nil {
		w.metrics.ObserveCycle("failed", time.Since(start).Seconds())
		w.failJob(ctx, jobID, response.CodeJobFailed, "Failed to save result")
		return err
	}

	outcome := "succeeded"
	if len(cycle.DroppedRegions) > 0 {
		outcome = "degraded"
	}
	w.metrics.ObserveCycle(outcome, time.Since(start).Seconds())

	w.hub.BroadcastComplete(jobID, result)

	log.Printf("Generation job %s completed: %d regions submitted, %d dropped",
		jobID, cycle.SubmittedCount, len(cycle.DroppedRegions))
	return nil
}

// fetchMashup downloads the rendered full mix and uploads it to storage,
// returning its public URL.
func (w *MashupWorker) fetchMashup(ctx context.Context, jobID, taskID string) (string, error) {
	if w.storage == nil {
		return "", fmt.Errorf("no storage configured")
	}

	mashup, err := w.generator.FetchMashup(ctx, taskID)
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(mashup.TaskResult.Snd)
	if err != nil {
		return "", fmt.Errorf("failed to decode mashup audio: %w", err)
	}

	key := fmt.Sprintf("mashups/%s.wav", jobID)
	url, err := w.storage.UploadAudio(ctx, key, data, "audio/wav")
	if err != nil {
		return "", fmt.Errorf("failed to upload mashup: %w", err)
	}

	// Only the newest mix is ever served; retire the previous object.
	if w.lastMashupKey != "" && w.lastMashupKey != key {
		if err := w.storage.Delete(ctx, w.lastMashupKey); err != nil {
			log.Printf("Job %s: failed to retire mashup %s: %v", jobID, w.lastMashupKey, err)
		}
	}
	w.lastMashupKey = key
	return url, nil
}

func (w *MashupWorker) failJob(ctx context.Context, jobID, code, errMsg string) {
	if err := w.mashupService.FailJob(ctx, jobID, errMsg); err != nil {
		log.Printf("Failed to mark job as failed: %v", err)
	}
	w.hub.BroadcastError(jobID, code, errMsg)
}
