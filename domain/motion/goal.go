package motion

import (
	"context"
	"fmt"
	"math"

	"github.com/open-teleop/cleaner/pkg/metrics"
)

// Point is a planar goal position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SeekGoal drives to goal with a pure proportional law on live pose:
//
//	linear.x  = KpLinear  * distance
//	angular.z = KpAngular * (atan2(dy, dx) - theta)
//
// It returns once the distance is within tolerance. Commands are not
// saturated here; limits belong to the transport.
func (p *Primitives) SeekGoal(ctx context.Context, goal Point, tolerance float64) error {
	if math.IsNaN(tolerance) || tolerance < 0 {
		return fmt.Errorf("%s: %w: tolerance %v", OpSeekGoal, ErrInvalidParameter, tolerance)
	}
	if !p.poses.Observed() {
		return fmt.Errorf("%s: %w", OpSeekGoal, ErrPoseUnavailable)
	}

	p.logger.Debugf("%s: goal=(%.3f, %.3f) tolerance=%.3f", OpSeekGoal, goal.X, goal.Y, tolerance)

	rate := NewRate(p.clock, p.cfg.GoalHz)
	maxDuration := p.cfg.MaxDuration()
	start := p.clock.Now()

	var (
		runErr   error
		distance float64
		ticks    int
	)
	for {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("%s: %w: %v", OpSeekGoal, ErrCancelled, err)
			break
		}

		cur := p.poses.Current()
		distance = cur.DistanceTo(goal.X, goal.Y)
		if distance <= tolerance {
			break
		}
		if maxDuration > 0 && p.clock.Now().Sub(start) >= maxDuration {
			runErr = fmt.Errorf("%s: %w after %v (distance %.3f)", OpSeekGoal, ErrTimeout, maxDuration, distance)
			break
		}

		heading := math.Atan2(goal.Y-cur.Y, goal.X-cur.X) - cur.Theta
		cmd := PlanarTwist(p.cfg.KpLinear*distance, p.cfg.KpAngular*heading)
		if err := p.cmd.Publish(ctx, cmd); err != nil {
			runErr = fmt.Errorf("%s: publish: %w", OpSeekGoal, err)
			break
		}
		ticks++

		if err := rate.Sleep(ctx); err != nil {
			runErr = fmt.Errorf("%s: %w: %v", OpSeekGoal, ErrCancelled, err)
			break
		}
	}

	if err := p.stop(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("%s: %w", OpSeekGoal, err)
	}
	metrics.PrimitiveTicks.WithLabelValues(OpSeekGoal).Add(float64(ticks))
	p.finish(OpSeekGoal, start, runErr)
	p.logger.Debugf("%s: finished ticks=%d distance=%.3f", OpSeekGoal, ticks, distance)
	return runErr
}
