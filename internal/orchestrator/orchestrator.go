package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mixboard/gateway/internal/client"
	"github.com/mixboard/gateway/internal/model"
	"github.com/mixboard/gateway/internal/store"
)

// ErrCycleInFlight rejects a generation trigger while another cycle is
// still running. Cycles never interleave.
var ErrCycleInFlight = errors.New("a generation cycle is already in flight")

// Composer is the audio-composition collaborator. Add and Remove follow a
// successful region merge or a deletion; an Update failure must roll back
// the store mutation that triggered it (the layout service owns that).
type Composer interface {
	Add(a model.Audio)
	Remove(regionID uuid.UUID)
	Update(regionID uuid.UUID, position, length int) error
	KeepOnly(regionIDs []uuid.UUID)
}

// AudioStore persists decoded region audio before composition. Remove
// cleans up a saved file whose merge was discarded.
type AudioStore interface {
	SaveAudio(data []byte, name, ext string) (string, error)
	Remove(path string) error
}

// Observer receives cycle callbacks at well-defined points: progress
// updates while polling and fetching, one notification per merged region,
// never anything after the cycle returns.
type Observer interface {
	OnProgress(progress int, step string)
	OnRegionReady(regionID uuid.UUID, fetched, total int)
}

type noopObserver struct{}

func (noopObserver) OnProgress(int, string)            {}
func (noopObserver) OnRegionReady(uuid.UUID, int, int) {}

// CycleParams identifies one generation cycle. A non-empty LastSessionID
// makes the cycle incremental: ready regions keep their audio and only the
// stale set is regenerated.
type CycleParams struct {
	SessionID     string
	LastSessionID string
	Email         string
}

// CycleResult is the outcome of a completed (possibly degraded) cycle.
type CycleResult struct {
	TaskID         string
	Layout         model.Layout
	SubmittedCount int
	DroppedRegions []uuid.UUID
	Tempo          float64
}

// Orchestrator drives one generation cycle end-to-end: select stale
// regions, submit, poll to terminal, fetch every region with independent
// retry, merge tolerantly, drop permanent failures, report.
type Orchestrator struct {
	store     *store.RegionStore
	generator client.Generator
	composer  Composer
	files     AudioStore

	inFlight atomic.Bool
}

// New constructs an orchestrator. All collaborators are injected; the
// in-flight guard is internal state, not process-wide.
func New(s *store.RegionStore, g client.Generator, c Composer, f AudioStore) *Orchestrator {
	return &Orchestrator{store: s, generator: g, composer: c, files: f}
}

// InFlight reports whether a cycle is currently running.
func (o *Orchestrator) InFlight() bool {
	return o.inFlight.Load()
}

// RunCycle executes one generation cycle. Overlapping calls fail fast with
// ErrCycleInFlight; the guard is cleared on every exit path. A fatal
// submit/poll failure leaves the store untouched. Per-region fetch
// failures degrade the result instead of aborting it: the failed regions
// are dropped from the layout and reported in DroppedRegions.
func (o *Orchestrator) RunCycle(ctx context.Context, params CycleParams, obs Observer) (*CycleResult, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCycleInFlight
	}
	defer o.inFlight.Store(false)

	if obs == nil {
		obs = noopObserver{}
	}

	incremental := params.LastSessionID != ""
	o.prepareComposition(incremental)

	stale, revs := o.store.StaleRegions(incremental)
	if len(stale) == 0 {
		obs.OnProgress(100, "Nothing to generate")
		return &CycleResult{Layout: o.store.Snapshot()}, nil
	}

	layout := o.store.Snapshot()
	taskID, err := o.generator.SubmitGenerate(ctx, &client.GenerateRequest{
		Data:          layout.Lanes,
		Email:         params.Email,
		SessionID:     params.SessionID,
		LastSessionID: params.LastSessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("submit generate: %w", err)
	}
	log.Printf("[Cycle] session %s submitted %d regions as task %s", params.SessionID, len(stale), taskID)

	// Initial placeholder; every later value comes from the service or the
	// fetch counter.
	obs.OnProgress(5, "Hold on! Creating some magic...")

	if _, err := o.generator.PollStatus(ctx, taskID, func(progress int, description string) {
		obs.OnProgress(progress, description)
	}); err != nil {
		return nil, fmt.Errorf("poll status: %w", err)
	}

	result := &CycleResult{TaskID: taskID, SubmittedCount: len(stale)}
	if err := o.fetchRegions(ctx, stale, revs, obs, result); err != nil {
		return nil, err
	}

	for _, id := range result.DroppedRegions {
		// A permanently undownloadable fragment is treated like a user
		// deletion.
		if _, err := o.store.RemoveRegion(id); err == nil {
			o.composer.Remove(id)
		}
	}

	result.Layout = o.store.Snapshot()
	obs.OnProgress(100, "Completed!")
	log.Printf("[Cycle] task %s done: %d merged, %d dropped",
		taskID, result.SubmittedCount-len(result.DroppedRegions), len(result.DroppedRegions))

	return result, nil
}

// prepareComposition discards composition audio that the cycle will
// replace: everything for a full cycle, only non-ready regions for an
// incremental one.
func (o *Orchestrator) prepareComposition(incremental bool) {
	if !incremental {
		o.store.MarkAll(model.RegionStateNew)
		o.composer.KeepOnly(nil)
		return
	}
	var ready []uuid.UUID
	layout := o.store.Snapshot()
	for _, track := range layout.Lanes {
		for _, region := range track.Regions {
			if region.State == model.RegionStateReady {
				ready = append(ready, region.ID)
			}
		}
	}
	o.composer.KeepOnly(ready)
}

// fetchRegions downloads every submitted region concurrently. Each fetch
// has its own bounded retry inside the client; a per-region permanent
// failure lands in DroppedRegions and never aborts the cycle. Results are
// merged through the store, which discards audio for regions deleted or
// re-edited while the job was in flight.
func (o *Orchestrator) fetchRegions(ctx context.Context, stale []model.Region, revs map[uuid.UUID]int, obs Observer, result *CycleResult) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fetched  atomic.Int64
		fatalErr error
	)
	total := len(stale)

	for _, region := range stale {
		region := region
		wg.Add(1)
		go func() {
			defer wg.Done()

			data, err := o.generator.FetchRegion(ctx, region.ID)
			if err != nil {
				var unavailable *client.RegionUnavailableError
				if errors.As(err, &unavailable) {
					mu.Lock()
					result.DroppedRegions = append(result.DroppedRegions, region.ID)
					mu.Unlock()
					return
				}
				mu.Lock()
				if fatalErr == nil {
					fatalErr = err
				}
				mu.Unlock()
				return
			}

			audioData, err := base64.StdEncoding.DecodeString(data.Snd)
			if err != nil {
				log.Printf("[Cycle] region %s: bad audio payload: %v", region.ID, err)
				mu.Lock()
				result.DroppedRegions = append(result.DroppedRegions, region.ID)
				mu.Unlock()
				return
			}

			path, err := o.files.SaveAudio(audioData, data.ID, "aac")
			if err != nil {
				mu.Lock()
				if fatalErr == nil {
					fatalErr = fmt.Errorf("save region audio: %w", err)
				}
				mu.Unlock()
				return
			}

			n := int(fetched.Add(1))
			if o.store.ApplyGenerationResult(region.ID, revs[region.ID], path) {
				o.composer.Add(model.Audio{
					RegionID: region.ID,
					File:     path,
					Position: int(data.Position),
					Length:   int(data.End - data.Start),
					Tempo:    data.Tempo,
				})
				mu.Lock()
				if data.Tempo > 0 {
					result.Tempo = data.Tempo
				}
				mu.Unlock()
				obs.OnRegionReady(region.ID, n, total)
			} else {
				// Deleted or re-edited since submission; the fetched audio
				// is stale and a newer edit supersedes it.
				log.Printf("[Cycle] region %s superseded mid-flight, result discarded", region.ID)
				if err := o.files.Remove(path); err != nil {
					log.Printf("[Cycle] region %s: discarding saved audio failed: %v", region.ID, err)
				}
			}
			obs.OnProgress(n*100/total, fmt.Sprintf("Fetched %d of %d regions", n, total))
		}()
	}

	wg.Wait()
	return fatalErr
}
