// Package motiontest provides a deterministic clock and a recording velocity
// sink for control loop tests.
package motiontest

import (
	"context"
	"sync"
	"time"

	"github.com/open-teleop/cleaner/domain/motion"
)

// Epoch is the initial time of every FakeClock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// FakeClock advances only when slept on, by exactly the requested duration.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time

	// OnSleep runs after each Sleep with the new time. Tests use it to move
	// the simulated robot once per tick.
	OnSleep func(now time.Time)
}

// NewFakeClock returns a clock set to Epoch.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: Epoch}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// Advance moves the clock forward by d and runs OnSleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	hook := c.OnSleep
	c.mu.Unlock()

	if hook != nil {
		hook(now)
	}
}

// Elapsed is the time advanced since Epoch.
func (c *FakeClock) Elapsed() time.Duration {
	return c.Now().Sub(Epoch)
}

// Recorder is a motion.Commander that keeps every published command.
type Recorder struct {
	mu     sync.Mutex
	twists []motion.Twist

	// Err, when set, is returned from Publish and nothing is recorded.
	Err error
	// OnPublish runs for every recorded command.
	OnPublish func(motion.Twist)
}

var _ motion.Commander = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, cmd motion.Twist) error {
	r.mu.Lock()
	if r.Err != nil {
		r.mu.Unlock()
		return r.Err
	}
	r.twists = append(r.twists, cmd)
	hook := r.OnPublish
	r.mu.Unlock()

	if hook != nil {
		hook(cmd)
	}
	return nil
}

// Twists returns a copy of everything published.
func (r *Recorder) Twists() []motion.Twist {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]motion.Twist(nil), r.twists...)
}

// Last returns the most recent command and false if none was published.
func (r *Recorder) Last() (motion.Twist, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.twists) == 0 {
		return motion.Twist{}, false
	}
	return r.twists[len(r.twists)-1], true
}

// NonZero counts commands that were not a stop.
func (r *Recorder) NonZero() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.twists {
		if !t.IsZero() {
			n++
		}
	}
	return n
}
