package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mixboard/gateway/internal/model"
)

var (
	// ErrNotFound is returned when a region id is not present in any lane
	ErrNotFound = errors.New("region not found")
	// ErrInvalidLane is returned for a lane outside the fixed enumeration
	ErrInvalidLane = errors.New("invalid lane")
)

// RegionStore is the sole owner and mutator of the timeline layout. All
// lane/region queries and edits pass through it; every entry point is
// serialized so UI-triggered edits and the orchestrator's result-merging
// path never interleave mid-mutation.
type RegionStore struct {
	mu     sync.Mutex
	layout model.Layout

	// revisions tracks an edit counter per region. A fetched result is only
	// applied if the region has not been re-edited since it was submitted.
	revisions map[uuid.UUID]int
}

// NewRegionStore creates a store with one empty track per lane.
func NewRegionStore(totalBeats int) *RegionStore {
	return &RegionStore{
		layout:    model.NewLayout(totalBeats),
		revisions: make(map[uuid.UUID]int),
	}
}

// AddRegion places a new region on a lane. The only rejection is an invalid
// lane; start and length are clamped so the region fits within the timeline
// capacity. The region starts in state new.
func (s *RegionStore) AddRegion(lane model.Lane, start, length int, songID string) (model.Region, error) {
	if !lane.Valid() {
		return model.Region{}, ErrInvalidLane
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start, length = s.clamp(start, length)
	region := model.Region{
		ID:     uuid.New(),
		Lane:   lane,
		Start:  start,
		Length: length,
		SongID: songID,
		State:  model.RegionStateNew,
	}

	track := s.layout.Lanes[lane]
	track.Regions = append(track.Regions, region)
	s.layout.Lanes[lane] = track
	s.revisions[region.ID] = 0
	s.recomputeZIndex(lane)

	return s.regionCopy(region.ID), nil
}

// MoveOrResize repositions and/or resizes a region. Growing the length marks
// the region new (its content boundary moved outward and must be
// regenerated); any other change marks it moved unless it is already new.
// The previous region value is returned so a caller can roll the edit back
// when a downstream collaborator rejects it.
func (s *RegionStore) MoveOrResize(id uuid.UUID, newStart, newLength int) (model.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lane, idx, ok := s.locate(id)
	if !ok {
		return model.Region{}, ErrNotFound
	}

	track := s.layout.Lanes[lane]
	prev := track.Regions[idx]

	newStart, newLength = s.clamp(newStart, newLength)
	track.Regions[idx].Start = newStart
	track.Regions[idx].Length = newLength

	if newLength > prev.Length {
		track.Regions[idx].State = model.RegionStateNew
	} else if prev.State != model.RegionStateNew {
		track.Regions[idx].State = model.RegionStateMoved
	}

	s.layout.Lanes[lane] = track
	s.revisions[id]++
	s.recomputeZIndex(lane)

	return prev, nil
}

// RestoreRegion reverts a region to a previously returned value. Used to
// roll back a MoveOrResize whose composer update failed.
func (s *RegionStore) RestoreRegion(prev model.Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lane, idx, ok := s.locate(prev.ID)
	if !ok {
		return ErrNotFound
	}

	track := s.layout.Lanes[lane]
	track.Regions[idx].Start = prev.Start
	track.Regions[idx].Length = prev.Length
	track.Regions[idx].State = prev.State
	s.layout.Lanes[lane] = track
	s.revisions[prev.ID]++
	s.recomputeZIndex(lane)

	return nil
}

// ChangeLane moves a region to a different lane and marks it new: lane
// assignment changes the generated content.
func (s *RegionStore) ChangeLane(id uuid.UUID, newLane model.Lane) error {
	if !newLane.Valid() {
		return ErrInvalidLane
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oldLane, idx, ok := s.locate(id)
	if !ok {
		return ErrNotFound
	}
	if oldLane == newLane {
		return nil
	}

	oldTrack := s.layout.Lanes[oldLane]
	region := oldTrack.Regions[idx]
	oldTrack.Regions = append(oldTrack.Regions[:idx], oldTrack.Regions[idx+1:]...)
	s.layout.Lanes[oldLane] = oldTrack

	region.Lane = newLane
	region.State = model.RegionStateNew
	newTrack := s.layout.Lanes[newLane]
	newTrack.Regions = append(newTrack.Regions, region)
	s.layout.Lanes[newLane] = newTrack

	s.revisions[id]++
	s.recomputeZIndex(oldLane)
	s.recomputeZIndex(newLane)

	return nil
}

// RemoveRegion deletes a region. Sibling regions keep their states.
func (s *RegionStore) RemoveRegion(id uuid.UUID) (model.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lane, idx, ok := s.locate(id)
	if !ok {
		return model.Region{}, ErrNotFound
	}

	track := s.layout.Lanes[lane]
	region := track.Regions[idx]
	track.Regions = append(track.Regions[:idx], track.Regions[idx+1:]...)
	s.layout.Lanes[lane] = track
	delete(s.revisions, id)
	s.recomputeZIndex(lane)

	return region, nil
}

// SetLaneState toggles mute/solo on a lane. Setting the state a lane is
// already in returns it to default.
func (s *RegionStore) SetLaneState(lane model.Lane, state model.LaneState) (model.LaneState, error) {
	if !lane.Valid() {
		return "", ErrInvalidLane
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	track := s.layout.Lanes[lane]
	if track.State == state {
		track.State = model.LaneStateDefault
	} else {
		track.State = state
	}
	s.layout.Lanes[lane] = track

	return track.State, nil
}

// StaleRegions returns copies of the regions that need (re)generation: only
// new regions for a first-time cycle, anything not ready for an incremental
// one. The returned revisions pin each region so a result fetched for a
// since-edited region is discarded on apply.
func (s *RegionStore) StaleRegions(incremental bool) ([]model.Region, map[uuid.UUID]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []model.Region
	revs := make(map[uuid.UUID]int)
	for _, lane := range model.Lanes {
		for _, region := range s.layout.Lanes[lane].Regions {
			needed := region.State == model.RegionStateNew
			if incremental {
				needed = region.State != model.RegionStateReady
			}
			if needed {
				stale = append(stale, region)
				revs[region.ID] = s.revisions[region.ID]
			}
		}
	}
	return stale, revs
}

// ApplyGenerationResult binds fetched audio to a region and marks it ready.
// It is a tolerated no-op (applied=false) when the region was deleted while
// the job was in flight, or re-edited since submission: in that case the
// fetched audio is stale and a newer edit supersedes it.
func (s *RegionStore) ApplyGenerationResult(id uuid.UUID, submittedRev int, audioRef string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	lane, idx, ok := s.locate(id)
	if !ok {
		return false
	}
	if s.revisions[id] != submittedRev {
		return false
	}

	track := s.layout.Lanes[lane]
	track.Regions[idx].State = model.RegionStateReady
	track.Regions[idx].AudioRef = audioRef
	s.layout.Lanes[lane] = track

	return true
}

// MarkAll bulk-transitions every region to the given state. Used to force a
// full regeneration (new) and to finalize a cycle (ready).
func (s *RegionStore) MarkAll(state model.RegionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, lane := range model.Lanes {
		track := s.layout.Lanes[lane]
		for i := range track.Regions {
			if track.Regions[i].State != state {
				track.Regions[i].State = state
				s.revisions[track.Regions[i].ID]++
			}
		}
		s.layout.Lanes[lane] = track
	}
}

// TrimToCapacity shrinks the timeline to newTotalBeats. Regions starting at
// or past the new capacity are removed; regions crossing it are clipped with
// move/resize state semantics. The removed and clipped regions are returned
// so the caller can reconcile the composition collaborator.
func (s *RegionStore) TrimToCapacity(newTotalBeats int) (removed, clipped []model.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.layout.TotalBeats = newTotalBeats

	for _, lane := range model.Lanes {
		track := s.layout.Lanes[lane]
		kept := track.Regions[:0]
		for _, region := range track.Regions {
			switch {
			case region.Start >= newTotalBeats:
				removed = append(removed, region)
				delete(s.revisions, region.ID)
			case region.End() > newTotalBeats:
				region.Length = newTotalBeats - region.Start
				if region.State != model.RegionStateNew {
					region.State = model.RegionStateMoved
				}
				s.revisions[region.ID]++
				kept = append(kept, region)
				clipped = append(clipped, region)
			default:
				kept = append(kept, region)
			}
		}
		track.Regions = kept
		s.layout.Lanes[lane] = track
		s.recomputeZIndex(lane)
	}

	return removed, clipped
}

// Snapshot returns a deep copy of the layout for readers.
func (s *RegionStore) Snapshot() model.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := model.Layout{
		TotalBeats: s.layout.TotalBeats,
		Lanes:      make(map[model.Lane]model.Track, len(s.layout.Lanes)),
	}
	for lane, track := range s.layout.Lanes {
		regions := make([]model.Region, len(track.Regions))
		copy(regions, track.Regions)
		snap.Lanes[lane] = model.Track{State: track.State, Regions: regions}
	}
	return snap
}

// Region returns a copy of a single region.
func (s *RegionStore) Region(id uuid.UUID) (model.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, ok := s.locate(id); !ok {
		return model.Region{}, ErrNotFound
	}
	return s.regionCopy(id), nil
}

// TotalBeats returns the current timeline capacity.
func (s *RegionStore) TotalBeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout.TotalBeats
}

// LastBeat returns the end of the last region, capped at the capacity.
func (s *RegionStore) LastBeat() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := 0
	for _, track := range s.layout.Lanes {
		for _, region := range track.Regions {
			if region.End() > last {
				last = region.End()
			}
		}
	}
	if last > s.layout.TotalBeats {
		last = s.layout.TotalBeats
	}
	return last
}

// RegionIDsByLaneState returns the ids of every region on lanes currently in
// the given state. Used by the mute/solo reconciliation.
func (s *RegionStore) RegionIDsByLaneState(state model.LaneState) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for _, lane := range model.Lanes {
		track := s.layout.Lanes[lane]
		if track.State != state {
			continue
		}
		for _, region := range track.Regions {
			ids = append(ids, region.ID)
		}
	}
	return ids
}

// Clear removes every region from every lane.
func (s *RegionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, lane := range model.Lanes {
		track := s.layout.Lanes[lane]
		track.Regions = []model.Region{}
		s.layout.Lanes[lane] = track
	}
	s.revisions = make(map[uuid.UUID]int)
}

// clamp fits start/length within the timeline capacity. Callers hold s.mu.
func (s *RegionStore) clamp(start, length int) (int, int) {
	total := s.layout.TotalBeats
	if length > total {
		length = total
	}
	if length < 1 {
		length = 1
	}
	if start < 0 {
		start = 0
	}
	if start+length > total {
		start = total - length
	}
	return start, length
}

// locate finds a region across all lanes. Callers hold s.mu.
func (s *RegionStore) locate(id uuid.UUID) (model.Lane, int, bool) {
	for _, lane := range model.Lanes {
		for idx, region := range s.layout.Lanes[lane].Regions {
			if region.ID == id {
				return lane, idx, true
			}
		}
	}
	return "", 0, false
}

func (s *RegionStore) regionCopy(id uuid.UUID) model.Region {
	lane, idx, _ := s.locate(id)
	return s.layout.Lanes[lane].Regions[idx]
}

// recomputeZIndex layers a lane's regions by descending length so shorter
// regions render above longer ones. Ties keep their current order. Callers
// hold s.mu.
func (s *RegionStore) recomputeZIndex(lane model.Lane) {
	track := s.layout.Lanes[lane]
	order := make([]int, len(track.Regions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return track.Regions[order[a]].Length > track.Regions[order[b]].Length
	})
	for z, idx := range order {
		track.Regions[idx].ZIndex = z
	}
	s.layout.Lanes[lane] = track
}
