package service

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/mixboard/gateway/internal/model"
	"github.com/mixboard/gateway/internal/orchestrator"
	"github.com/mixboard/gateway/internal/store"
)

// Composer is the composition collaborator the layout edits act on. It
// extends the generation-cycle contract with mute control.
type Composer interface {
	orchestrator.Composer
	SetMuted(regionIDs []uuid.UUID)
}

// LayoutService applies user edits to the region store and keeps the
// composition collaborator consistent with them. Edits are accepted while
// a generation is in flight; the store's tolerant merge handles the race.
type LayoutService struct {
	store    *store.RegionStore
	composer Composer
}

func NewLayoutService(s *store.RegionStore, c Composer) *LayoutService {
	return &LayoutService{store: s, composer: c}
}

// AddRegion places a region on a lane in state new.
func (s *LayoutService) AddRegion(req *model.AddRegionRequest) (model.Region, error) {
	return s.store.AddRegion(req.Lane, req.Start, req.Length, req.SongID)
}

// UpdateRegion moves/resizes a region and, for a lane change, reassigns it.
// A moved-not-regenerated region is rescheduled in place through the
// composer; if the composer rejects the update the store mutation is
// rolled back and the edit fails.
func (s *LayoutService) UpdateRegion(id uuid.UUID, req *model.UpdateRegionRequest) (model.Region, error) {
	prev, err := s.store.MoveOrResize(id, req.Start, req.Length)
	if err != nil {
		return model.Region{}, err
	}

	region, err := s.store.Region(id)
	if err != nil {
		return model.Region{}, err
	}

	// A moved region still carries audio from an earlier cycle, so every
	// move reschedules it in place, including a move of an already-moved
	// region. New regions wait for the next generation cycle instead.
	if region.State == model.RegionStateMoved {
		if err := s.composer.Update(id, region.Start, region.Length); err != nil {
			if restoreErr := s.store.RestoreRegion(prev); restoreErr != nil {
				log.Printf("[Layout] rollback of region %s failed: %v", id, restoreErr)
			}
			return model.Region{}, fmt.Errorf("cannot update position for region %s: %w", id, err)
		}
	}

	if req.Lane != nil && *req.Lane != region.Lane {
		if err := s.store.ChangeLane(id, *req.Lane); err != nil {
			return model.Region{}, err
		}
		region, err = s.store.Region(id)
		if err != nil {
			return model.Region{}, err
		}
	}

	return region, nil
}

// RemoveRegion deletes a region and its composed audio.
func (s *LayoutService) RemoveRegion(id uuid.UUID) error {
	if _, err := s.store.RemoveRegion(id); err != nil {
		return err
	}
	s.composer.Remove(id)
	return nil
}

// RemoveRegionsForSong deletes every region placed from the given song,
// marking the survivors for regeneration: the generator composes regions
// against the whole library, so removing a song invalidates the mix.
func (s *LayoutService) RemoveRegionsForSong(songID string) int {
	layout := s.store.Snapshot()
	removed := 0
	for _, track := range layout.Lanes {
		for _, region := range track.Regions {
			if region.SongID != songID {
				continue
			}
			if _, err := s.store.RemoveRegion(region.ID); err == nil {
				s.composer.Remove(region.ID)
				removed++
			}
		}
	}
	if removed > 0 {
		s.store.MarkAll(model.RegionStateNew)
	}
	return removed
}

// SetLaneState toggles mute/solo and re-resolves the silenced region set.
// Solo wins: if any lane is soloed, everything not soloed is silenced.
func (s *LayoutService) SetLaneState(lane model.Lane, state model.LaneState) (model.LaneState, error) {
	newState, err := s.store.SetLaneState(lane, state)
	if err != nil {
		return "", err
	}
	s.applyLaneStates()
	return newState, nil
}

func (s *LayoutService) applyLaneStates() {
	solo := s.store.RegionIDsByLaneState(model.LaneStateSolo)
	if len(solo) > 0 {
		soloSet := make(map[uuid.UUID]bool, len(solo))
		for _, id := range solo {
			soloSet[id] = true
		}
		var silenced []uuid.UUID
		layout := s.store.Snapshot()
		for _, track := range layout.Lanes {
			for _, region := range track.Regions {
				if !soloSet[region.ID] {
					silenced = append(silenced, region.ID)
				}
			}
		}
		s.composer.SetMuted(silenced)
		return
	}

	s.composer.SetMuted(s.store.RegionIDsByLaneState(model.LaneStateMute))
}

// SetTotalBeats resizes the timeline, trimming regions that no longer fit
// and rescheduling clipped ones.
func (s *LayoutService) SetTotalBeats(totalBeats int) model.Layout {
	removed, clipped := s.store.TrimToCapacity(totalBeats)
	for _, region := range removed {
		s.composer.Remove(region.ID)
	}
	for _, region := range clipped {
		if region.State == model.RegionStateMoved {
			if err := s.composer.Update(region.ID, region.Start, region.Length); err != nil {
				// No rollback here: capacity is authoritative, so drop the
				// audio and let the next cycle regenerate the region.
				s.composer.Remove(region.ID)
			}
		}
	}
	return s.store.Snapshot()
}

// Clear empties the canvas and the composition.
func (s *LayoutService) Clear() {
	s.composer.KeepOnly(nil)
	s.store.Clear()
}

// Snapshot returns the current layout.
func (s *LayoutService) Snapshot() model.Layout {
	return s.store.Snapshot()
}

// LastBeat returns the end of the last placed region.
func (s *LayoutService) LastBeat() int {
	return s.store.LastBeat()
}
