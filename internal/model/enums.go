package model

// Lane identifies one of the four fixed timeline lanes
type Lane string

const (
	LaneVocals Lane = "vocals"
	LaneOther  Lane = "other"
	LaneBass   Lane = "bass"
	LaneDrums  Lane = "drums"
)

// Lanes lists all lanes in display order (top to bottom)
var Lanes = []Lane{LaneVocals, LaneOther, LaneBass, LaneDrums}

// Valid reports whether l is one of the four known lanes
func (l Lane) Valid() bool {
	for _, lane := range Lanes {
		if l == lane {
			return true
		}
	}
	return false
}

// Lane playback states
type LaneState string

const (
	LaneStateDefault LaneState = "default"
	LaneStateMute    LaneState = "mute"
	LaneStateSolo    LaneState = "solo"
)

// Region lifecycle states
type RegionState string

const (
	// RegionStateNew means the region was just created or lengthened and
	// must be (re)generated before playback.
	RegionStateNew RegionState = "new"
	// RegionStateMoved means the region was repositioned or shortened; its
	// content is unchanged and an in-place update may suffice.
	RegionStateMoved RegionState = "moved"
	// RegionStateReady means the region is backed by generated audio.
	RegionStateReady RegionState = "ready"
)

// Remote generator task statuses (wire values)
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusProgress RequestStatus = "PROGRESS"
	RequestStatusSuccess  RequestStatus = "SUCCESS"
	RequestStatusFailure  RequestStatus = "FAILURE"
)

// Terminal reports whether the status ends polling
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusSuccess || s == RequestStatusFailure
}

// Local job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)
