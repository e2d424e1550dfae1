package audio

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/mixboard/gateway/internal/model"
)

// ErrUnknownRegion is returned by Update for a region the composition has
// never seen; the caller is expected to roll back the edit that assumed it.
var ErrUnknownRegion = errors.New("region not in composition")

// Music is the in-process composition tracker: the set of generated audio
// fragments currently scheduled on the timeline, keyed by region id. The
// playback engine consumes this; the gateway only keeps it consistent with
// the region store.
type Music struct {
	mu     sync.Mutex
	audios map[uuid.UUID]model.Audio
	muted  map[uuid.UUID]bool
	tempo  float64
}

// NewMusic creates an empty composition.
func NewMusic() *Music {
	return &Music{
		audios: make(map[uuid.UUID]model.Audio),
		muted:  make(map[uuid.UUID]bool),
	}
}

// Add schedules a fragment, replacing any previous audio for the region.
func (m *Music) Add(a model.Audio) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.audios[a.RegionID] = a
	if a.Tempo > 0 {
		m.tempo = a.Tempo
	}
}

// Remove drops a region's fragment. Unknown regions are ignored.
func (m *Music) Remove(regionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.audios, regionID)
	delete(m.muted, regionID)
}

// Update repositions an already-scheduled fragment in place. It fails for
// a region without audio: a moved-but-not-yet-generated fragment cannot be
// rescheduled, and the triggering edit must be rolled back.
func (m *Music) Update(regionID uuid.UUID, position, length int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.audios[regionID]
	if !ok {
		return ErrUnknownRegion
	}
	a.Position = position
	a.Length = length
	m.audios[regionID] = a
	return nil
}

// SetMuted flags which regions are currently silenced. Solo lanes win over
// muted lanes; the caller resolves that and passes the final set.
func (m *Music) SetMuted(regionIDs []uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.muted = make(map[uuid.UUID]bool, len(regionIDs))
	for _, id := range regionIDs {
		m.muted[id] = true
	}
}

// Muted reports whether the region is silenced.
func (m *Music) Muted(regionID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted[regionID]
}

// Has reports whether a region has scheduled audio.
func (m *Music) Has(regionID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.audios[regionID]
	return ok
}

// Len returns the number of scheduled fragments.
func (m *Music) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audios)
}

// Tempo returns the tempo of the most recently added fragment.
func (m *Music) Tempo() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempo
}

// Reset drops every fragment. Used when a full regeneration starts.
func (m *Music) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audios = make(map[uuid.UUID]model.Audio)
	m.muted = make(map[uuid.UUID]bool)
}

// KeepOnly retains fragments for the given region ids and drops the rest.
// Used by incremental regeneration to discard audio for stale regions.
func (m *Music) KeepOnly(regionIDs []uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := make(map[uuid.UUID]bool, len(regionIDs))
	for _, id := range regionIDs {
		keep[id] = true
	}
	for id := range m.audios {
		if !keep[id] {
			delete(m.audios, id)
			delete(m.muted, id)
		}
	}
}
