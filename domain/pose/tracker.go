// Package pose keeps the most recent pose observation of the robot.
package pose

import (
	"math"
	"sync"
	"time"
)

// Pose is a planar position and heading. Theta is in radians, wrapped or
// unwrapped exactly as the pose source delivered it.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`

	LinearVelocity  float64   `json:"linear_velocity"`
	AngularVelocity float64   `json:"angular_velocity"`
	Stamp           time.Time `json:"stamp"`
}

// DistanceTo is the euclidean distance between the two positions.
func (p Pose) DistanceTo(x, y float64) float64 {
	return math.Hypot(x-p.X, y-p.Y)
}

// Tracker is a single-slot, last-write-wins pose store. Update is called by
// the transport goroutine, reads come from the control loop.
type Tracker struct {
	mu   sync.RWMutex
	last Pose
	seq  uint64
}

// NewTracker returns an empty tracker. Current reports the zero pose until
// the first Update.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update overwrites the stored pose.
func (t *Tracker) Update(p Pose) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = p
	t.seq++
}

// Current returns the last received pose.
func (t *Tracker) Current() Pose {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Snapshot returns the last pose with the number of updates received so far.
func (t *Tracker) Snapshot() (Pose, uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.seq
}

// Observed reports whether any pose has been received.
func (t *Tracker) Observed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.seq > 0
}
