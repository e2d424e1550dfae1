package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mixboard/gateway/internal/audio"
	"github.com/mixboard/gateway/internal/model"
	"github.com/mixboard/gateway/internal/store"
)

func newLayoutService(t *testing.T) (*LayoutService, *store.RegionStore, *audio.Music) {
	t.Helper()
	s := store.NewRegionStore(32)
	m := audio.NewMusic()
	return NewLayoutService(s, m), s, m
}

func place(t *testing.T, svc *LayoutService, lane model.Lane, start, length int) model.Region {
	t.Helper()
	region, err := svc.AddRegion(&model.AddRegionRequest{Lane: lane, Start: start, Length: length, SongID: "song-1"})
	if err != nil {
		t.Fatalf("AddRegion failed: %v", err)
	}
	return region
}

func makeReady(t *testing.T, s *store.RegionStore, m *audio.Music, region model.Region) {
	t.Helper()
	_, revs := s.StaleRegions(false)
	if !s.ApplyGenerationResult(region.ID, revs[region.ID], "a.wav") {
		t.Fatalf("could not mark region %s ready", region.ID)
	}
	m.Add(model.Audio{RegionID: region.ID, File: "a.wav", Position: region.Start, Length: region.Length})
}

func TestUpdateRegion_ReschedulesReadyAudio(t *testing.T) {
	svc, s, m := newLayoutService(t)
	region := place(t, svc, model.LaneVocals, 0, 8)
	makeReady(t, s, m, region)

	got, err := svc.UpdateRegion(region.ID, &model.UpdateRegionRequest{Start: 4, Length: 8})
	if err != nil {
		t.Fatalf("UpdateRegion failed: %v", err)
	}
	if got.State != model.RegionStateMoved {
		t.Errorf("expected moved, got %s", got.State)
	}
	if !m.Has(region.ID) {
		t.Error("moved region must keep its audio")
	}
}

func TestUpdateRegion_RollsBackOnComposerFailure(t *testing.T) {
	svc, s, _ := newLayoutService(t)
	region := place(t, svc, model.LaneVocals, 0, 8)

	// Mark ready in the store only; the composer never saw this region, so
	// its Update fails and the edit must roll back.
	_, revs := s.StaleRegions(false)
	s.ApplyGenerationResult(region.ID, revs[region.ID], "a.wav")

	_, err := svc.UpdateRegion(region.ID, &model.UpdateRegionRequest{Start: 4, Length: 8})
	if err == nil {
		t.Fatal("expected the edit to fail")
	}

	got, _ := s.Region(region.ID)
	if got.Start != 0 || got.State != model.RegionStateReady {
		t.Errorf("expected rollback to the ready region at 0, got %+v", got)
	}
}

func TestUpdateRegion_LaneChangeMarksNew(t *testing.T) {
	svc, s, m := newLayoutService(t)
	region := place(t, svc, model.LaneVocals, 0, 4)
	makeReady(t, s, m, region)

	bass := model.LaneBass
	got, err := svc.UpdateRegion(region.ID, &model.UpdateRegionRequest{Start: 0, Length: 4, Lane: &bass})
	if err != nil {
		t.Fatalf("UpdateRegion failed: %v", err)
	}
	if got.Lane != model.LaneBass || got.State != model.RegionStateNew {
		t.Errorf("expected new region on bass, got %+v", got)
	}
}

func TestRemoveRegion_DropsAudio(t *testing.T) {
	svc, s, m := newLayoutService(t)
	region := place(t, svc, model.LaneDrums, 0, 4)
	makeReady(t, s, m, region)

	if err := svc.RemoveRegion(region.ID); err != nil {
		t.Fatalf("RemoveRegion failed: %v", err)
	}
	if m.Has(region.ID) {
		t.Error("removed region's audio must leave the composition")
	}
	if _, err := s.Region(region.ID); err != store.ErrNotFound {
		t.Errorf("expected region gone, got %v", err)
	}
}

func TestSetLaneState_SoloWins(t *testing.T) {
	svc, _, m := newLayoutService(t)
	vocals := place(t, svc, model.LaneVocals, 0, 4)
	drums := place(t, svc, model.LaneDrums, 0, 4)
	other := place(t, svc, model.LaneOther, 0, 4)

	// Mute drums: only drums silenced.
	if _, err := svc.SetLaneState(model.LaneDrums, model.LaneStateMute); err != nil {
		t.Fatalf("SetLaneState failed: %v", err)
	}
	if !m.Muted(drums.ID) || m.Muted(vocals.ID) {
		t.Error("expected only drums silenced")
	}

	// Solo vocals: everything but vocals silenced, mute overridden.
	if _, err := svc.SetLaneState(model.LaneVocals, model.LaneStateSolo); err != nil {
		t.Fatalf("SetLaneState failed: %v", err)
	}
	if m.Muted(vocals.ID) {
		t.Error("soloed lane must play")
	}
	if !m.Muted(drums.ID) || !m.Muted(other.ID) {
		t.Error("non-solo lanes must be silenced")
	}

	// Toggle solo off: back to the mute set.
	if _, err := svc.SetLaneState(model.LaneVocals, model.LaneStateSolo); err != nil {
		t.Fatalf("SetLaneState failed: %v", err)
	}
	if m.Muted(vocals.ID) || m.Muted(other.ID) {
		t.Error("expected solo cleared")
	}
	if !m.Muted(drums.ID) {
		t.Error("expected drums still muted")
	}
}

func TestSetTotalBeats_ReconcilesComposition(t *testing.T) {
	svc, s, m := newLayoutService(t)
	crossing := place(t, svc, model.LaneVocals, 10, 8)
	past := place(t, svc, model.LaneDrums, 20, 8)
	makeReady(t, s, m, crossing)
	makeReady(t, s, m, past)

	layout := svc.SetTotalBeats(16)

	if layout.TotalBeats != 16 {
		t.Errorf("expected capacity 16, got %d", layout.TotalBeats)
	}
	if m.Has(past.ID) {
		t.Error("removed region's audio must leave the composition")
	}
	if !m.Has(crossing.ID) {
		t.Error("clipped region's audio must stay")
	}
}

func TestClear_EmptiesEverything(t *testing.T) {
	svc, s, m := newLayoutService(t)
	region := place(t, svc, model.LaneVocals, 0, 4)
	makeReady(t, s, m, region)

	svc.Clear()

	if m.Has(region.ID) {
		t.Error("expected composition emptied")
	}
	if svc.Snapshot().RegionCount() != 0 {
		t.Error("expected layout emptied")
	}
}

// trackingComposer records the positions handed to Update.
type trackingComposer struct {
	updates []int
}

func (c *trackingComposer) Add(model.Audio)      {}
func (c *trackingComposer) Remove(uuid.UUID)     {}
func (c *trackingComposer) SetMuted([]uuid.UUID) {}
func (c *trackingComposer) KeepOnly([]uuid.UUID) {}

func (c *trackingComposer) Update(id uuid.UUID, position, length int) error {
	c.updates = append(c.updates, position)
	return nil
}

func TestUpdateRegion_ConsecutiveMovesEachReschedule(t *testing.T) {
	s := store.NewRegionStore(32)
	c := &trackingComposer{}
	svc := NewLayoutService(s, c)

	region, err := svc.AddRegion(&model.AddRegionRequest{Lane: model.LaneVocals, Start: 0, Length: 8, SongID: "song-1"})
	if err != nil {
		t.Fatalf("AddRegion failed: %v", err)
	}
	_, revs := s.StaleRegions(false)
	if !s.ApplyGenerationResult(region.ID, revs[region.ID], "a.wav") {
		t.Fatalf("could not mark region %s ready", region.ID)
	}

	for _, start := range []int{4, 12} {
		got, err := svc.UpdateRegion(region.ID, &model.UpdateRegionRequest{Start: start, Length: 8})
		if err != nil {
			t.Fatalf("UpdateRegion to %d failed: %v", start, err)
		}
		if got.State != model.RegionStateMoved {
			t.Fatalf("expected moved after moving to %d, got %s", start, got.State)
		}
	}

	if len(c.updates) != 2 || c.updates[0] != 4 || c.updates[1] != 12 {
		t.Errorf("expected the composer to see positions [4 12], got %v", c.updates)
	}
}
