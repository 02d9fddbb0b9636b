// Package maneuver composes motion primitives into the cleaning patterns:
// a boustrophedon grid sweep, an expanding spiral and homing.
package maneuver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/open-teleop/cleaner/domain/motion"
	"github.com/open-teleop/cleaner/pkg/config"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/pkg/metrics"
)

// Maneuver names.
const (
	Grid   = "grid"
	Spiral = "spiral"
	Home   = "home"
)

var (
	ErrUnknownManeuver = errors.New("unknown maneuver")
	ErrBusy            = errors.New("a maneuver is already running")
)

// Names lists the maneuvers Run accepts.
func Names() []string {
	return []string{Grid, Spiral, Home}
}

// Driver is the set of blocking motion operations a script is built from.
// *motion.Primitives implements it.
type Driver interface {
	MoveStraight(ctx context.Context, speed, distance float64, forward bool) error
	Rotate(ctx context.Context, angularSpeed, relativeAngle float64, clockwise bool) error
	OrientTo(ctx context.Context, desiredAngle float64) error
	SeekGoal(ctx context.Context, goal motion.Point, tolerance float64) error
}

var _ Driver = (*motion.Primitives)(nil)

// Sequencer runs one maneuver at a time. The spiral publishes through cmd
// directly; everything else goes through the driver.
type Sequencer struct {
	drive  Driver
	cmd    motion.Commander
	poses  motion.PoseSource
	clock  motion.Clock
	cfg    *config.Config
	logger customlog.Logger

	mu       sync.Mutex
	status   Status
	observer func(Status)
}

// New builds a sequencer for one config snapshot. clock may be nil.
func New(drive Driver, cmd motion.Commander, poses motion.PoseSource, clock motion.Clock, cfg *config.Config, logger customlog.Logger) *Sequencer {
	if clock == nil {
		clock = motion.SystemClock{}
	}
	return &Sequencer{
		drive:  drive,
		cmd:    cmd,
		poses:  poses,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
		status: Status{Phase: PhaseIdle},
	}
}

// OnStatus registers fn to receive every status transition. fn runs on the
// maneuver goroutine and must not block.
func (s *Sequencer) OnStatus(fn func(Status)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Status returns the current snapshot.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run starts the named maneuver and blocks until it ends.
func (s *Sequencer) Run(ctx context.Context, name string) error {
	switch name {
	case Grid:
		return s.GridSweep(ctx)
	case Spiral:
		return s.SpiralSweep(ctx)
	case Home:
		return s.Home(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownManeuver, name)
	}
}

// GridSweep seeks the start corner, then covers the area in parallel lanes
// joined by a turn, a short offset and a reorientation onto the return lane.
func (s *Sequencer) GridSweep(ctx context.Context) error {
	return s.run(ctx, Grid, s.grid)
}

// SpiralSweep drives an outward spiral until the pose leaves the lower left
// region on both axes, then homes.
func (s *Sequencer) SpiralSweep(ctx context.Context) error {
	return s.run(ctx, Spiral, s.spiral)
}

// Home reorients to the home heading. It does not change position.
func (s *Sequencer) Home(ctx context.Context) error {
	return s.run(ctx, Home, s.home)
}

func (s *Sequencer) run(ctx context.Context, name string, script func(context.Context) error) error {
	s.mu.Lock()
	if s.status.Phase.Active() {
		running := s.status.Maneuver
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBusy, running)
	}
	s.status = Status{Maneuver: name, Phase: PhaseRunning, Started: s.clock.Now()}
	s.mu.Unlock()
	s.notify()

	log := s.logger.WithField("maneuver", name)
	log.Infof("Maneuver started")

	err := script(ctx)

	s.update(func(st *Status) {
		st.Phase = PhaseBraking
		st.Step = "brake"
	})
	if stopErr := s.brake(ctx); stopErr != nil && err == nil {
		err = stopErr
	}

	result := metrics.ResultDone
	phase := PhaseDone
	switch {
	case err == nil:
	case errors.Is(err, motion.ErrCancelled) || ctx.Err() != nil:
		result, phase = metrics.ResultCancelled, PhaseCancelled
	case errors.Is(err, motion.ErrTimeout):
		result, phase = metrics.ResultTimeout, PhaseFailed
	default:
		result, phase = metrics.ResultFailed, PhaseFailed
	}
	s.update(func(st *Status) {
		st.Phase = phase
		st.Finished = s.clock.Now()
		if err != nil {
			st.Error = err.Error()
		}
	})
	metrics.ManeuverRuns.WithLabelValues(name, result).Inc()

	if err != nil {
		log.Warnf("Maneuver %s: %v", phase, err)
		return fmt.Errorf("maneuver %s: %w", name, err)
	}
	log.Infof("Maneuver done")
	return nil
}

func (s *Sequencer) brake(ctx context.Context) error {
	if err := s.cmd.Publish(context.WithoutCancel(ctx), motion.Twist{}); err != nil {
		return fmt.Errorf("publish stop: %w", err)
	}
	return nil
}

func (s *Sequencer) update(fn func(*Status)) {
	s.mu.Lock()
	fn(&s.status)
	s.mu.Unlock()
	s.notify()
}

func (s *Sequencer) step(name string) {
	s.update(func(st *Status) {
		st.Step = name
		st.Steps++
	})
	s.logger.Debugf("Step %s", name)
}

func (s *Sequencer) notify() {
	s.mu.Lock()
	fn, st := s.observer, s.status
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

// pause is pacing only; it never gates correctness.
func (s *Sequencer) pause(ctx context.Context) error {
	d := s.cfg.Pause()
	if d <= 0 {
		return nil
	}
	if err := s.clock.Sleep(ctx, d); err != nil {
		return fmt.Errorf("pause: %w: %v", motion.ErrCancelled, err)
	}
	return nil
}
