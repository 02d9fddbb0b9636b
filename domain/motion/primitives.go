// Package motion implements the single-axis motion primitives and the
// proportional goal-seek controller. Every operation blocks until its exit
// condition holds, publishing one command per tick, and always ends with a
// stop command.
package motion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/open-teleop/cleaner/pkg/config"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/pkg/metrics"
)

// Primitive names, used in logs, metrics and errors.
const (
	OpMoveStraight = "move_straight"
	OpRotate       = "rotate"
	OpOrientTo     = "orient_to"
	OpSeekGoal     = "seek_goal"
)

// Primitives drives the robot through Commander using pose feedback from a
// PoseSource where an operation needs it.
type Primitives struct {
	cmd    Commander
	poses  PoseSource
	clock  Clock
	cfg    config.MotionConfig
	logger customlog.Logger
}

// New builds the primitives. clock may be nil for the wall clock.
func New(cmd Commander, poses PoseSource, clock Clock, cfg config.MotionConfig, logger customlog.Logger) *Primitives {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Primitives{
		cmd:    cmd,
		poses:  poses,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// DegreesToRadians converts an angle in degrees to radians.
func DegreesToRadians(d float64) float64 {
	return d * math.Pi / 180.0
}

// RadiansToDegrees converts an angle in radians to degrees.
func RadiansToDegrees(r float64) float64 {
	return r * 180.0 / math.Pi
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// MoveStraight drives along the current heading at |speed| until distance
// is covered, backwards when forward is false. speed must be non-zero when
// distance is positive.
func (p *Primitives) MoveStraight(ctx context.Context, speed, distance float64, forward bool) error {
	if err := checkAxis(OpMoveStraight, speed, distance); err != nil {
		return err
	}
	if distance < 0 {
		return fmt.Errorf("%s: %w: distance %v is negative", OpMoveStraight, ErrInvalidParameter, distance)
	}

	v := math.Abs(speed)
	if !forward {
		v = -v
	}
	est, err := p.estimator(OpMoveStraight, speed)
	if err != nil {
		return err
	}
	p.logger.Debugf("%s: speed=%.3f distance=%.3f forward=%t", OpMoveStraight, speed, distance, forward)
	return p.drive(ctx, OpMoveStraight, PlanarTwist(v, 0), distance, est)
}

// Rotate spins in place at |angularSpeed| until |relativeAngle| radians have
// been swept. Direction comes only from clockwise.
func (p *Primitives) Rotate(ctx context.Context, angularSpeed, relativeAngle float64, clockwise bool) error {
	angle := math.Abs(relativeAngle)
	if err := checkAxis(OpRotate, angularSpeed, angle); err != nil {
		return err
	}

	w := math.Abs(angularSpeed)
	if clockwise {
		w = -w
	}
	est, err := p.estimator(OpRotate, angularSpeed)
	if err != nil {
		return err
	}
	p.logger.Debugf("%s: speed=%.3f angle=%.3f clockwise=%t", OpRotate, angularSpeed, angle, clockwise)
	return p.drive(ctx, OpRotate, PlanarTwist(0, w), angle, est)
}

// OrientTo turns to the absolute heading desiredAngle (radians) along the
// shorter direction. Like Rotate it stops on the time estimate, so the final
// heading drifts with any mismatch between commanded and real angular speed.
func (p *Primitives) OrientTo(ctx context.Context, desiredAngle float64) error {
	if !p.poses.Observed() {
		return fmt.Errorf("%s: %w", OpOrientTo, ErrPoseUnavailable)
	}
	relative := NormalizeAngle(desiredAngle - p.poses.Current().Theta)
	clockwise := relative < 0
	p.logger.Debugf("%s: desired=%.3f relative=%.3f clockwise=%t", OpOrientTo, desiredAngle, relative, clockwise)
	if err := p.Rotate(ctx, math.Abs(relative), math.Abs(relative), clockwise); err != nil {
		return fmt.Errorf("%s: %w", OpOrientTo, err)
	}
	return nil
}

func (p *Primitives) estimator(op string, rate float64) (Estimator, error) {
	if p.cfg.Estimator != config.EstimatorPoseFeedback {
		return &TimeIntegratedEstimate{Rate: rate}, nil
	}
	if !p.poses.Observed() {
		return nil, fmt.Errorf("%s: %w", op, ErrPoseUnavailable)
	}
	if op == OpRotate {
		return &PoseHeadingEstimate{Poses: p.poses}, nil
	}
	return &PoseDistanceEstimate{Poses: p.poses}, nil
}

// drive is the shared publish-estimate-wait loop of MoveStraight and Rotate.
func (p *Primitives) drive(ctx context.Context, op string, cmd Twist, target float64, est Estimator) error {
	rate := NewRate(p.clock, p.cfg.StraightHz)
	maxDuration := p.cfg.MaxDuration()
	start := p.clock.Now()
	est.Start(start)

	var (
		runErr   error
		progress float64
		ticks    int
	)
	for {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("%s: %w: %v", op, ErrCancelled, err)
			break
		}
		if err := p.cmd.Publish(ctx, cmd); err != nil {
			runErr = fmt.Errorf("%s: publish: %w", op, err)
			break
		}
		ticks++

		now := p.clock.Now()
		progress = est.Progress(now)
		if progress >= target {
			break
		}
		if maxDuration > 0 && now.Sub(start) >= maxDuration {
			runErr = fmt.Errorf("%s: %w after %v (%.3f of %.3f)", op, ErrTimeout, maxDuration, progress, target)
			break
		}
		if err := rate.Sleep(ctx); err != nil {
			runErr = fmt.Errorf("%s: %w: %v", op, ErrCancelled, err)
			break
		}
	}

	if err := p.stop(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("%s: %w", op, err)
	}
	metrics.PrimitiveTicks.WithLabelValues(op).Add(float64(ticks))
	p.finish(op, start, runErr)
	p.logger.Debugf("%s: finished ticks=%d progress=%.3f target=%.3f", op, ticks, progress, target)
	return runErr
}

// stop publishes the zero command. It must go out even when ctx is done.
func (p *Primitives) stop(ctx context.Context) error {
	if err := p.cmd.Publish(context.WithoutCancel(ctx), Twist{}); err != nil {
		return fmt.Errorf("publish stop: %w", err)
	}
	return nil
}

func (p *Primitives) finish(op string, start time.Time, err error) {
	result := metrics.ResultDone
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelled):
		result = metrics.ResultCancelled
	case errors.Is(err, ErrTimeout):
		result = metrics.ResultTimeout
	default:
		result = metrics.ResultFailed
	}
	metrics.PrimitiveRuns.WithLabelValues(op, result).Inc()
	if err != nil {
		p.logger.Warnf("%s aborted after %v: %v", op, p.clock.Now().Sub(start), err)
	}
}

// checkAxis rejects parameters that would make a time-integrated loop spin
// forever or compare against NaN.
func checkAxis(op string, speed, target float64) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || math.IsNaN(target) || math.IsInf(target, 0) {
		return fmt.Errorf("%s: %w: speed=%v target=%v", op, ErrInvalidParameter, speed, target)
	}
	if speed == 0 && target > 0 {
		return fmt.Errorf("%s: %w: zero speed never covers %v", op, ErrInvalidParameter, target)
	}
	return nil
}
