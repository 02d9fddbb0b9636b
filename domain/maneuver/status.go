package maneuver

import (
	"fmt"
	"time"
)

// Phase is the lifecycle state of one maneuver run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseBraking
	PhaseDone
	PhaseFailed
	PhaseCancelled
)

var phaseNames = map[Phase]string{
	PhaseIdle:      "idle",
	PhaseRunning:   "running",
	PhaseBraking:   "braking",
	PhaseDone:      "done",
	PhaseFailed:    "failed",
	PhaseCancelled: "cancelled",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Active reports whether a run is in progress.
func (p Phase) Active() bool {
	return p == PhaseRunning || p == PhaseBraking
}

// Status is a snapshot of the sequencer.
type Status struct {
	Maneuver string    `json:"maneuver,omitempty"`
	Phase    Phase     `json:"phase"`
	Step     string    `json:"step,omitempty"`
	Steps    int       `json:"steps"`
	Started  time.Time `json:"started,omitempty"`
	Finished time.Time `json:"finished,omitempty"`
	Error    string    `json:"error,omitempty"`
}
