package motion

import (
	"context"
	"time"
)

// Clock is the time source of every control loop. Tests substitute a clock
// whose Sleep advances time instantly.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep blocks for d or until ctx is done.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Rate paces a loop at a fixed frequency. Sleep waits only for the remainder
// of the current period; a loop that overran by more than one period restarts
// its schedule from now instead of bursting to catch up.
type Rate struct {
	clock  Clock
	period time.Duration
	next   time.Time
}

// NewRate starts a schedule at hz on clock. hz must be > 0.
func NewRate(clock Clock, hz float64) *Rate {
	period := time.Duration(float64(time.Second) / hz)
	return &Rate{
		clock:  clock,
		period: period,
		next:   clock.Now().Add(period),
	}
}

// Period is the tick length.
func (r *Rate) Period() time.Duration {
	return r.period
}

// Sleep suspends until the next tick boundary.
func (r *Rate) Sleep(ctx context.Context) error {
	now := r.clock.Now()
	wait := r.next.Sub(now)
	if wait <= 0 {
		if -wait > r.period {
			r.next = now.Add(r.period)
		} else {
			r.next = r.next.Add(r.period)
		}
		return ctx.Err()
	}
	r.next = r.next.Add(r.period)
	return r.clock.Sleep(ctx, wait)
}
