package maneuver_test

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/cleaner/domain/maneuver"
	"github.com/open-teleop/cleaner/domain/motion"
	"github.com/open-teleop/cleaner/domain/motion/motiontest"
	"github.com/open-teleop/cleaner/domain/pose"
	"github.com/open-teleop/cleaner/pkg/config"
	customlog "github.com/open-teleop/cleaner/pkg/log"
)

type call struct {
	Op    string
	A, B  float64
	Flag  bool
	Point motion.Point
}

// fakeDriver records calls and returns immediately. errAt makes the n-th
// call (1-based) fail with err.
type fakeDriver struct {
	mu    sync.Mutex
	calls []call
	errAt int
	err   error
}

func (d *fakeDriver) record(c call) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
	if d.errAt > 0 && len(d.calls) == d.errAt {
		return d.err
	}
	return nil
}

func (d *fakeDriver) MoveStraight(_ context.Context, speed, distance float64, forward bool) error {
	return d.record(call{Op: motion.OpMoveStraight, A: speed, B: distance, Flag: forward})
}

func (d *fakeDriver) Rotate(_ context.Context, angularSpeed, relativeAngle float64, clockwise bool) error {
	return d.record(call{Op: motion.OpRotate, A: angularSpeed, B: relativeAngle, Flag: clockwise})
}

func (d *fakeDriver) OrientTo(_ context.Context, desired float64) error {
	return d.record(call{Op: motion.OpOrientTo, A: desired})
}

func (d *fakeDriver) SeekGoal(_ context.Context, goal motion.Point, tolerance float64) error {
	return d.record(call{Op: motion.OpSeekGoal, Point: goal, A: tolerance})
}

func (d *fakeDriver) Calls() []call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]call(nil), d.calls...)
}

type fixture struct {
	driver  *fakeDriver
	rec     *motiontest.Recorder
	clock   *motiontest.FakeClock
	tracker *pose.Tracker
	cfg     *config.Config
	seq     *maneuver.Sequencer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		driver:  &fakeDriver{},
		rec:     &motiontest.Recorder{},
		clock:   motiontest.NewFakeClock(),
		tracker: pose.NewTracker(),
		cfg:     config.Default(),
	}
	f.seq = maneuver.New(f.driver, f.rec, f.tracker, f.clock, f.cfg, customlog.NewNopLogger())
	return f
}

func TestGridSweepCallSequence(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.seq.GridSweep(context.Background()))

	quarter := motion.DegreesToRadians(90)
	want := []call{
		{Op: motion.OpSeekGoal, Point: motion.Point{X: 1, Y: 1}, A: 0.1},
		{Op: motion.OpOrientTo, A: 0},
		{Op: motion.OpMoveStraight, A: 2, B: 9, Flag: true},
		{Op: motion.OpRotate, A: quarter, B: quarter, Flag: false},
		{Op: motion.OpMoveStraight, A: 2, B: 1, Flag: true},
		{Op: motion.OpOrientTo, A: math.Pi},
		{Op: motion.OpMoveStraight, A: 2, B: 9, Flag: true},
		{Op: motion.OpRotate, A: quarter, B: quarter, Flag: true},
		{Op: motion.OpMoveStraight, A: 2, B: 1, Flag: true},
		{Op: motion.OpOrientTo, A: 0},
		{Op: motion.OpMoveStraight, A: 2, B: 9, Flag: true},
		{Op: motion.OpRotate, A: quarter, B: quarter, Flag: false},
		{Op: motion.OpMoveStraight, A: 2, B: 1, Flag: true},
		{Op: motion.OpOrientTo, A: math.Pi},
		{Op: motion.OpMoveStraight, A: 2, B: 9, Flag: true},
	}
	assert.Equal(t, want, f.driver.Calls())

	lanes, rotates := 0, 0
	var flags []bool
	for _, c := range f.driver.Calls() {
		switch {
		case c.Op == motion.OpMoveStraight && c.B == 9:
			lanes++
		case c.Op == motion.OpRotate:
			rotates++
			flags = append(flags, c.Flag)
		}
	}
	assert.Equal(t, 4, lanes)
	assert.Equal(t, 3, rotates)
	for i := 1; i < len(flags); i++ {
		assert.NotEqual(t, flags[i-1], flags[i], "turn directions must alternate")
	}

	st := f.seq.Status()
	assert.Equal(t, maneuver.PhaseDone, st.Phase)
	assert.Equal(t, maneuver.Grid, st.Maneuver)
	assert.Empty(t, st.Error)
	assert.Equal(t, time.Second, f.clock.Elapsed(), "one pause after the seek")
}

func TestGridSweepAbortsOnError(t *testing.T) {
	f := newFixture(t)
	f.driver.errAt = 4
	f.driver.err = fmt.Errorf("rotate: %w", motion.ErrTimeout)

	err := f.seq.GridSweep(context.Background())
	require.ErrorIs(t, err, motion.ErrTimeout)

	assert.Len(t, f.driver.Calls(), 4)
	st := f.seq.Status()
	assert.Equal(t, maneuver.PhaseFailed, st.Phase)
	assert.Contains(t, st.Error, "exceeded")

	last, ok := f.rec.Last()
	require.True(t, ok)
	assert.True(t, last.IsZero(), "braking publishes a stop")
}

func TestGridSweepCancelled(t *testing.T) {
	f := newFixture(t)
	f.driver.errAt = 1
	f.driver.err = motion.ErrCancelled

	err := f.seq.GridSweep(context.Background())
	require.ErrorIs(t, err, motion.ErrCancelled)
	assert.Equal(t, maneuver.PhaseCancelled, f.seq.Status().Phase)
}

func TestSpiralSweepBoundedByPose(t *testing.T) {
	f := newFixture(t)
	f.tracker.Update(pose.Pose{X: 5.5, Y: 5.5})
	var spiralTicks int
	f.clock.OnSleep = func(time.Time) {
		if spiralTicks >= 11 {
			return
		}
		spiralTicks++
		p := f.tracker.Current()
		p.X++
		p.Y += 0.5
		f.tracker.Update(p)
	}
	f.rec.OnPublish = func(tw motion.Twist) {
		if tw.IsZero() {
			return
		}
		p := f.tracker.Current()
		assert.False(t, p.X > 10.5 && p.Y > 10.5, "published after leaving bounds at %+v", p)
	}

	require.NoError(t, f.seq.SpiralSweep(context.Background()))

	// y crosses 10.5 last, on the eleventh tick
	assert.Equal(t, 11, f.rec.NonZero())
	twists := f.rec.Twists()
	assert.Equal(t, motion.PlanarTwist(1.0, 4.0), twists[0])
	assert.Equal(t, motion.PlanarTwist(6.0, 4.0), twists[10])
	assert.True(t, twists[11].IsZero())

	calls := f.driver.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, motion.OpOrientTo, calls[0].Op)
	assert.InDelta(t, math.Pi/2, calls[0].A, 1e-12)

	assert.Equal(t, 11*time.Second+2*time.Second, f.clock.Elapsed())
	assert.Equal(t, maneuver.PhaseDone, f.seq.Status().Phase)
}

func TestSpiralSweepNeedsPose(t *testing.T) {
	f := newFixture(t)

	err := f.seq.SpiralSweep(context.Background())
	require.ErrorIs(t, err, motion.ErrPoseUnavailable)
	assert.Empty(t, f.driver.Calls())
	assert.Equal(t, maneuver.PhaseFailed, f.seq.Status().Phase)
}

func TestSpiralSweepCancel(t *testing.T) {
	f := newFixture(t)
	f.tracker.Update(pose.Pose{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.rec.OnPublish = func(motion.Twist) {
		if f.rec.NonZero() == 3 {
			cancel()
		}
	}

	err := f.seq.SpiralSweep(ctx)
	require.ErrorIs(t, err, motion.ErrCancelled)
	assert.Equal(t, 3, f.rec.NonZero())
	assert.Empty(t, f.driver.Calls(), "home is skipped after cancel")
	assert.Equal(t, maneuver.PhaseCancelled, f.seq.Status().Phase)
}

func TestHomeOrientsOnly(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.seq.Home(context.Background()))

	assert.Equal(t, []call{{Op: motion.OpOrientTo, A: motion.DegreesToRadians(90)}}, f.driver.Calls())
	assert.Equal(t, 2*time.Second, f.clock.Elapsed())
}

func TestRunDispatchesByName(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.seq.Run(context.Background(), maneuver.Home))
	err := f.seq.Run(context.Background(), "zigzag")
	require.ErrorIs(t, err, maneuver.ErrUnknownManeuver)
	assert.ElementsMatch(t, []string{"grid", "spiral", "home"}, maneuver.Names())
}

func TestRunRejectsConcurrentManeuver(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.clock.OnSleep = func(time.Time) {
		select {
		case <-entered:
		default:
			close(entered)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() { done <- f.seq.Home(context.Background()) }()
	<-entered

	err := f.seq.GridSweep(context.Background())
	require.ErrorIs(t, err, maneuver.ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestStatusObserverSeesTransitions(t *testing.T) {
	f := newFixture(t)
	var phases []maneuver.Phase
	f.seq.OnStatus(func(s maneuver.Status) {
		if len(phases) == 0 || phases[len(phases)-1] != s.Phase {
			phases = append(phases, s.Phase)
		}
	})

	require.NoError(t, f.seq.Home(context.Background()))
	assert.Equal(t, []maneuver.Phase{maneuver.PhaseRunning, maneuver.PhaseBraking, maneuver.PhaseDone}, phases)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "running", maneuver.PhaseRunning.String())
	assert.Equal(t, "phase(42)", maneuver.Phase(42).String())
	text, err := maneuver.PhaseCancelled.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "cancelled", string(text))
	assert.False(t, maneuver.PhaseDone.Active())
	assert.True(t, maneuver.PhaseBraking.Active())
}
