package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mixboard/gateway/internal/model"
)

func newStore(t *testing.T) *RegionStore {
	t.Helper()
	return NewRegionStore(32)
}

func addRegion(t *testing.T, s *RegionStore, lane model.Lane, start, length int) model.Region {
	t.Helper()
	region, err := s.AddRegion(lane, start, length, "song-1")
	if err != nil {
		t.Fatalf("AddRegion failed: %v", err)
	}
	return region
}

func TestAddRegion_InvalidLane(t *testing.T) {
	s := newStore(t)

	_, err := s.AddRegion(model.Lane("guitar"), 0, 4, "song-1")
	if err != ErrInvalidLane {
		t.Errorf("expected ErrInvalidLane, got %v", err)
	}
}

func TestAddRegion_ClampsToCapacity(t *testing.T) {
	s := newStore(t)

	region := addRegion(t, s, model.LaneVocals, 30, 8)
	if region.End() > 32 {
		t.Errorf("region end %d exceeds capacity 32", region.End())
	}
	if region.Length != 8 {
		t.Errorf("expected length preserved at 8, got %d", region.Length)
	}
	if region.Start != 24 {
		t.Errorf("expected start shifted to 24, got %d", region.Start)
	}
	if region.State != model.RegionStateNew {
		t.Errorf("expected state new, got %s", region.State)
	}
}

func TestMoveOrResize_LengthenMarksNew(t *testing.T) {
	s := newStore(t)
	region := addRegion(t, s, model.LaneDrums, 0, 4)
	s.ApplyGenerationResult(region.ID, 0, "a.wav")

	if _, err := s.MoveOrResize(region.ID, 0, 8); err != nil {
		t.Fatalf("MoveOrResize failed: %v", err)
	}

	got, _ := s.Region(region.ID)
	if got.State != model.RegionStateNew {
		t.Errorf("expected lengthened region to be new, got %s", got.State)
	}
}

func TestMoveOrResize_ShrinkMarksMoved(t *testing.T) {
	s := newStore(t)
	region := addRegion(t, s, model.LaneDrums, 0, 8)
	s.ApplyGenerationResult(region.ID, 0, "a.wav")

	if _, err := s.MoveOrResize(region.ID, 2, 4); err != nil {
		t.Fatalf("MoveOrResize failed: %v", err)
	}

	got, _ := s.Region(region.ID)
	if got.State != model.RegionStateMoved {
		t.Errorf("expected shrunk ready region to be moved, got %s", got.State)
	}
}

func TestMoveOrResize_NewStaysNew(t *testing.T) {
	s := newStore(t)
	region := addRegion(t, s, model.LaneBass, 0, 8)

	if _, err := s.MoveOrResize(region.ID, 4, 8); err != nil {
		t.Fatalf("MoveOrResize failed: %v", err)
	}

	got, _ := s.Region(region.ID)
	if got.State != model.RegionStateNew {
		t.Errorf("expected new region to stay new after move, got %s", got.State)
	}
}

func TestRestoreRegion_RevertsEdit(t *testing.T) {
	s := newStore(t)
	region := addRegion(t, s, model.LaneOther, 4, 8)
	s.ApplyGenerationResult(region.ID, 0, "a.wav")
	before, _ := s.Region(region.ID)

	prev, err := s.MoveOrResize(region.ID, 10, 6)
	if err != nil {
		t.Fatalf("MoveOrResize failed: %v", err)
	}
	if err := s.RestoreRegion(prev); err != nil {
		t.Fatalf("RestoreRegion failed: %v", err)
	}

	got, _ := s.Region(region.ID)
	if got.Start != before.Start || got.Length != before.Length || got.State != before.State {
		t.Errorf("expected region restored to %+v, got %+v", before, got)
	}
}

func TestChangeLane_MarksNew(t *testing.T) {
	s := newStore(t)
	region := addRegion(t, s, model.LaneVocals, 0, 4)
	s.ApplyGenerationResult(region.ID, 0, "a.wav")

	if err := s.ChangeLane(region.ID, model.LaneBass); err != nil {
		t.Fatalf("ChangeLane failed: %v", err)
	}

	got, _ := s.Region(region.ID)
	if got.Lane != model.LaneBass {
		t.Errorf("expected lane bass, got %s", got.Lane)
	}
	if got.State != model.RegionStateNew {
		t.Errorf("expected state new after lane change, got %s", got.State)
	}

	snap := s.Snapshot()
	if len(snap.Lanes[model.LaneVocals].Regions) != 0 {
		t.Error("expected region removed from old lane")
	}
}

func TestSetLaneState_ToggleReturnsDefault(t *testing.T) {
	s := newStore(t)

	state, err := s.SetLaneState(model.LaneDrums, model.LaneStateMute)
	if err != nil {
		t.Fatalf("SetLaneState failed: %v", err)
	}
	if state != model.LaneStateMute {
		t.Errorf("expected mute, got %s", state)
	}

	state, _ = s.SetLaneState(model.LaneDrums, model.LaneStateMute)
	if state != model.LaneStateDefault {
		t.Errorf("expected toggle back to default, got %s", state)
	}

	state, _ = s.SetLaneState(model.LaneDrums, model.LaneStateSolo)
	if state != model.LaneStateSolo {
		t.Errorf("expected solo to replace default, got %s", state)
	}
}

func TestStaleRegions_FullVsIncremental(t *testing.T) {
	s := newStore(t)
	fresh := addRegion(t, s, model.LaneVocals, 0, 4)
	ready := addRegion(t, s, model.LaneDrums, 0, 4)
	s.ApplyGenerationResult(ready.ID, 0, "a.wav")
	moved := addRegion(t, s, model.LaneBass, 0, 4)
	s.ApplyGenerationResult(moved.ID, 0, "b.wav")
	s.MoveOrResize(moved.ID, 4, 4)

	stale, _ := s.StaleRegions(false)
	if len(stale) != 1 || stale[0].ID != fresh.ID {
		t.Errorf("full cycle should select only new regions, got %d", len(stale))
	}

	stale, revs := s.StaleRegions(true)
	if len(stale) != 2 {
		t.Fatalf("incremental cycle should select new and moved regions, got %d", len(stale))
	}
	for _, region := range stale {
		if region.ID == ready.ID {
			t.Error("incremental cycle must not select ready regions")
		}
		if _, ok := revs[region.ID]; !ok {
			t.Errorf("missing pinned revision for %s", region.ID)
		}
	}
}

func TestStaleRegions_Idempotent(t *testing.T) {
	s := newStore(t)
	addRegion(t, s, model.LaneVocals, 0, 4)
	addRegion(t, s, model.LaneDrums, 8, 4)

	first, _ := s.StaleRegions(false)
	second, _ := s.StaleRegions(false)
	if len(first) != len(second) {
		t.Errorf("selection must not mutate state: %d then %d", len(first), len(second))
	}
}

func TestApplyGenerationResult_DeletedRegion(t *testing.T) {
	s := newStore(t)
	region := addRegion(t, s, model.LaneOther, 0, 4)
	_, revs := s.StaleRegions(false)
	s.RemoveRegion(region.ID)

	if s.ApplyGenerationResult(region.ID, revs[region.ID], "a.wav") {
		t.Error("applying a result to a deleted region must be a no-op")
	}
}

func TestApplyGenerationResult_SupersededEdit(t *testing.T) {
	s := newStore(t)
	region := addRegion(t, s, model.LaneOther, 0, 4)
	_, revs := s.StaleRegions(false)

	// Edited while the job was in flight.
	s.MoveOrResize(region.ID, 8, 4)

	if s.ApplyGenerationResult(region.ID, revs[region.ID], "a.wav") {
		t.Error("a result for a re-edited region must be discarded")
	}
	got, _ := s.Region(region.ID)
	if got.State == model.RegionStateReady {
		t.Error("superseded region must not be marked ready")
	}
}

func TestApplyGenerationResult_MarksReady(t *testing.T) {
	s := newStore(t)
	region := addRegion(t, s, model.LaneVocals, 0, 4)
	_, revs := s.StaleRegions(false)

	if !s.ApplyGenerationResult(region.ID, revs[region.ID], "r.wav") {
		t.Fatal("expected result to apply")
	}
	got, _ := s.Region(region.ID)
	if got.State != model.RegionStateReady || got.AudioRef != "r.wav" {
		t.Errorf("expected ready region with audio ref, got %+v", got)
	}
}

func TestTrimToCapacity(t *testing.T) {
	s := newStore(t)
	crossing := addRegion(t, s, model.LaneVocals, 10, 8)
	past := addRegion(t, s, model.LaneDrums, 20, 8)
	inside := addRegion(t, s, model.LaneBass, 0, 8)
	s.ApplyGenerationResult(crossing.ID, 0, "a.wav")

	removed, clipped := s.TrimToCapacity(16)

	if len(removed) != 1 || removed[0].ID != past.ID {
		t.Fatalf("expected the region at beat 20 removed, got %d removed", len(removed))
	}
	if len(clipped) != 1 || clipped[0].ID != crossing.ID {
		t.Fatalf("expected the crossing region clipped, got %d clipped", len(clipped))
	}

	got, _ := s.Region(crossing.ID)
	if got.Length != 6 {
		t.Errorf("expected clip to length 6, got %d", got.Length)
	}
	if got.State != model.RegionStateMoved {
		t.Errorf("expected clipped ready region marked moved, got %s", got.State)
	}

	got, _ = s.Region(inside.ID)
	if got.Length != 8 || got.State != model.RegionStateNew {
		t.Errorf("untouched region changed: %+v", got)
	}

	if _, err := s.Region(past.ID); err != ErrNotFound {
		t.Errorf("removed region still present: %v", err)
	}
}

func TestTrimToCapacity_ThenGrowBack(t *testing.T) {
	s := newStore(t)
	region := addRegion(t, s, model.LaneVocals, 10, 8)

	s.TrimToCapacity(16)
	s.TrimToCapacity(32)

	got, _ := s.Region(region.ID)
	if got.Length != 6 {
		t.Errorf("growing capacity must not restore clipped length, got %d", got.Length)
	}
	if s.TotalBeats() != 32 {
		t.Errorf("expected capacity 32, got %d", s.TotalBeats())
	}
}

func TestZIndex_DescendingLength(t *testing.T) {
	s := newStore(t)
	long := addRegion(t, s, model.LaneVocals, 0, 16)
	short := addRegion(t, s, model.LaneVocals, 0, 4)
	mid := addRegion(t, s, model.LaneVocals, 8, 8)

	snap := s.Snapshot()
	z := make(map[uuid.UUID]int)
	for _, region := range snap.Lanes[model.LaneVocals].Regions {
		z[region.ID] = region.ZIndex
	}

	if !(z[long.ID] < z[mid.ID] && z[mid.ID] < z[short.ID]) {
		t.Errorf("expected z order long < mid < short, got %v", z)
	}
}

func TestZIndex_StableTies(t *testing.T) {
	s := newStore(t)
	first := addRegion(t, s, model.LaneDrums, 0, 4)
	second := addRegion(t, s, model.LaneDrums, 8, 4)

	snap := s.Snapshot()
	z := make(map[uuid.UUID]int)
	for _, region := range snap.Lanes[model.LaneDrums].Regions {
		z[region.ID] = region.ZIndex
	}

	if z[first.ID] >= z[second.ID] {
		t.Errorf("equal lengths must keep insertion order, got %v", z)
	}
}

func TestMarkAll(t *testing.T) {
	s := newStore(t)
	a := addRegion(t, s, model.LaneVocals, 0, 4)
	b := addRegion(t, s, model.LaneDrums, 0, 4)
	s.ApplyGenerationResult(a.ID, 0, "a.wav")
	s.ApplyGenerationResult(b.ID, 0, "b.wav")

	s.MarkAll(model.RegionStateNew)

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		got, _ := s.Region(id)
		if got.State != model.RegionStateNew {
			t.Errorf("expected region %s new, got %s", id, got.State)
		}
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	s := newStore(t)
	region := addRegion(t, s, model.LaneVocals, 0, 4)

	snap := s.Snapshot()
	regions := snap.Lanes[model.LaneVocals].Regions
	regions[0].Start = 99

	got, _ := s.Region(region.ID)
	if got.Start == 99 {
		t.Error("mutating a snapshot must not affect the store")
	}
}

func TestClear(t *testing.T) {
	s := newStore(t)
	addRegion(t, s, model.LaneVocals, 0, 4)
	addRegion(t, s, model.LaneDrums, 0, 4)

	s.Clear()

	snap := s.Snapshot()
	if snap.RegionCount() != 0 {
		t.Errorf("expected empty layout, got %d regions", snap.RegionCount())
	}
}
