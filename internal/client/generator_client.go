package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mixboard/gateway/internal/config"
	"github.com/mixboard/gateway/internal/model"
)

// Generator defines the protocol operations against the remote mashup
// generator. Every call is idempotent from the caller's perspective:
// classified retry happens inside the client.
type Generator interface {
	NewSession(ctx context.Context, email string) error
	SubmitGenerate(ctx context.Context, req *GenerateRequest) (string, error)
	GetStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	PollStatus(ctx context.Context, taskID string, onProgress func(progress int, description string)) (*TaskStatus, error)
	FetchRegion(ctx context.Context, regionID uuid.UUID) (*RegionData, error)
	FetchMashup(ctx context.Context, taskID string) (*MashupResult, error)
	AddSong(ctx context.Context, songURL, email string) (string, error)
	RemoveSong(ctx context.Context, songURL, email string) error
}

// GeneratorClient implements Generator over HTTP/JSON.
type GeneratorClient struct {
	httpClient *http.Client
	baseURL    string
	policy     RetryPolicy
}

// GenerateRequest is the layout submission payload.
type GenerateRequest struct {
	Data          map[model.Lane]model.Track `json:"data"`
	Email         string                     `json:"email"`
	SessionID     string                     `json:"sessionId"`
	LastSessionID string                     `json:"lastSessionId,omitempty"`
}

// TaskStatus is the generator's status report for a submitted task.
type TaskStatus struct {
	RequestStatus model.RequestStatus `json:"requestStatus"`
	TaskID        string              `json:"task_id"`
	TaskResult    StatusResult        `json:"task_result"`
}

// StatusResult carries the progress detail of a non-terminal status.
type StatusResult struct {
	Progress    int    `json:"progress"`
	Description string `json:"description,omitempty"`
}

// RegionData is one generated region's content. Valid=false means the
// region is not generated yet and the caller should keep polling; it is
// distinct from an HTTP error.
type RegionData struct {
	ID       string  `json:"id"`
	Snd      string  `json:"snd"` // base64 audio
	Tempo    float64 `json:"tempo"`
	Position int64   `json:"position"`
	Lane     string  `json:"lane"`
	Valid    bool    `json:"valid"`
	Start    int64   `json:"start"`
	End      int64   `json:"end"`
}

// MashupResult is the fully composed mashup audio for a finished task.
type MashupResult struct {
	TaskResult struct {
		Snd   string  `json:"snd"` // base64 audio
		Tempo float64 `json:"tempo"`
	} `json:"task_result"`
}

type taskAccepted struct {
	TaskID string `json:"task_id"`
}

// NewGeneratorClient creates a client for the remote generator service.
func NewGeneratorClient(cfg config.GeneratorConfig) *GeneratorClient {
	return &GeneratorClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.BaseURL,
		policy:  NewRetryPolicy(cfg),
	}
}

// NewSession opens a generator session for the given user.
func (c *GeneratorClient) NewSession(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	var resp map[string]int
	return c.policy.Do(ctx, func() error {
		return c.post(ctx, "/newSession", body, &resp)
	})
}

// SubmitGenerate submits the current layout for generation and returns the
// task id used for status polling.
func (c *GeneratorClient) SubmitGenerate(ctx context.Context, req *GenerateRequest) (string, error) {
	var resp taskAccepted
	err := c.policy.Do(ctx, func() error {
		return c.post(ctx, "/generate", req, &resp)
	})
	if err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", ErrEmptyTaskID
	}
	return resp.TaskID, nil
}

// GetStatus retrieves the status of a task once, with classified retry on
// transport and decode failures.
func (c *GeneratorClient) GetStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var status TaskStatus
	err := c.policy.Do(ctx, func() error {
		return c.get(ctx, "/requestStatus/"+taskID, &status)
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// PollStatus polls a task at the configured cadence until a terminal status
// is observed. PENDING and PROGRESS both mean "keep polling" and differ only
// in the detail surfaced through onProgress. A FAILURE status is fatal
// immediately; an exhausted transport budget is reported as ErrPollTimeout.
// The transient budget restarts after every successful poll, so exhausting
// it always means consecutive failures.
func (c *GeneratorClient) PollStatus(ctx context.Context, taskID string, onProgress func(progress int, description string)) (*TaskStatus, error) {
	for {
		status, err := c.GetStatus(ctx, taskID)
		if err != nil {
			if Classify(err) == ClassTransient {
				return nil, fmt.Errorf("%w: %v", ErrPollTimeout, err)
			}
			return nil, err
		}

		switch status.RequestStatus {
		case model.RequestStatusSuccess:
			return status, nil
		case model.RequestStatusFailure:
			return status, fmt.Errorf("%w: task %s", ErrServiceFailure, taskID)
		}

		if onProgress != nil {
			onProgress(status.TaskResult.Progress, status.TaskResult.Description)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.policy.PollInterval):
		}
	}
}

// FetchRegion retrieves one generated region's audio. A valid=false payload
// keeps polling within the region budget; exhausting any budget yields a
// RegionUnavailableError, fatal for this region only.
func (c *GeneratorClient) FetchRegion(ctx context.Context, regionID uuid.UUID) (*RegionData, error) {
	var data RegionData
	err := c.policy.Do(ctx, func() error {
		if err := c.get(ctx, "/requestRegion/"+regionID.String(), &data); err != nil {
			return err
		}
		if !data.Valid {
			return &notReadyError{regionID: regionID}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		log.Printf("[Generator] ✗ region %s failed permanently: %v", regionID, err)
		return nil, &RegionUnavailableError{RegionID: regionID, Err: err}
	}
	return &data, nil
}

// FetchMashup retrieves the fully composed mashup for a finished task.
func (c *GeneratorClient) FetchMashup(ctx context.Context, taskID string) (*MashupResult, error) {
	var result MashupResult
	err := c.policy.Do(ctx, func() error {
		return c.get(ctx, "/requestResult/"+taskID, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// AddSong asks the generator to ingest a library song and returns the task
// id tracking the download.
func (c *GeneratorClient) AddSong(ctx context.Context, songURL, email string) (string, error) {
	body := map[string]string{"url": songURL, "email": email}
	var resp taskAccepted
	err := c.policy.Do(ctx, func() error {
		return c.post(ctx, "/addSong", body, &resp)
	})
	if err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", ErrEmptyTaskID
	}
	return resp.TaskID, nil
}

// RemoveSong removes a library song from the generator session.
func (c *GeneratorClient) RemoveSong(ctx context.Context, songURL, email string) error {
	body := map[string]string{"url": songURL, "email": email}
	var resp map[string]string
	return c.policy.Do(ctx, func() error {
		return c.post(ctx, "/removeSong", body, &resp)
	})
}

// post sends a POST request with JSON body
func (c *GeneratorClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *GeneratorClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *GeneratorClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Generator] ✗ %s %s request failed: %v", req.Method, req.URL.Path, err)
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Generator] ✗ %s %s failed to read response: %v", req.Method, req.URL.Path, err)
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[Generator] ✗ unmarshal error for %s %s: %v", req.Method, req.URL.Path, err)
		return &decodeError{err: err}
	}

	return nil
}

// IsConfigured returns true if the client has a generator endpoint.
func (c *GeneratorClient) IsConfigured() bool {
	return c.baseURL != ""
}
