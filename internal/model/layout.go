package model

import "github.com/google/uuid"

// Region is a placed fragment of a library song on a lane.
type Region struct {
	ID       uuid.UUID   `json:"id"`
	Lane     Lane        `json:"lane"`
	Start    int         `json:"start"`
	Length   int         `json:"length"`
	SongID   string      `json:"songId"`
	ZIndex   int         `json:"zIndex"`
	State    RegionState `json:"state"`
	AudioRef string      `json:"audioRef,omitempty"`
}

// End returns the first beat past the region.
func (r Region) End() int {
	return r.Start + r.Length
}

// Track is one lane's ordered regions plus its playback state.
type Track struct {
	State   LaneState `json:"laneState"`
	Regions []Region  `json:"layout"`
}

// Layout is the full set of lanes with their regions and states.
type Layout struct {
	TotalBeats int            `json:"totalBeats"`
	Lanes      map[Lane]Track `json:"lane"`
}

// NewLayout creates an empty layout with one track per lane.
func NewLayout(totalBeats int) Layout {
	lanes := make(map[Lane]Track, len(Lanes))
	for _, lane := range Lanes {
		lanes[lane] = Track{State: LaneStateDefault, Regions: []Region{}}
	}
	return Layout{TotalBeats: totalBeats, Lanes: lanes}
}

// RegionCount returns the number of regions across all lanes.
func (l Layout) RegionCount() int {
	count := 0
	for _, track := range l.Lanes {
		count += len(track.Regions)
	}
	return count
}

// Empty reports whether no lane holds any region.
func (l Layout) Empty() bool {
	return l.RegionCount() == 0
}

// Audio is a generated fragment handed to the composition collaborator.
type Audio struct {
	RegionID uuid.UUID
	File     string
	Position int
	Length   int
	Tempo    float64
}
