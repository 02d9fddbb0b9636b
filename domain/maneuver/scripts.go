package maneuver

import (
	"context"
	"fmt"
	"math"

	"github.com/open-teleop/cleaner/domain/motion"
	"github.com/open-teleop/cleaner/pkg/metrics"
)

func (s *Sequencer) grid(ctx context.Context) error {
	g := s.cfg.Grid
	turnRate := motion.DegreesToRadians(g.TurnRateDeg)
	turnAngle := motion.DegreesToRadians(g.TurnAngleDeg)

	s.step(fmt.Sprintf("seek start (%.2f, %.2f)", g.StartX, g.StartY))
	if err := s.drive.SeekGoal(ctx, motion.Point{X: g.StartX, Y: g.StartY}, g.Tolerance); err != nil {
		return err
	}
	if err := s.pause(ctx); err != nil {
		return err
	}

	s.step("align lane 1")
	if err := s.drive.OrientTo(ctx, laneHeading(0)); err != nil {
		return err
	}
	for lane := 0; lane < g.Lanes; lane++ {
		s.step(fmt.Sprintf("lane %d/%d", lane+1, g.Lanes))
		if err := s.drive.MoveStraight(ctx, g.Speed, g.LaneLength, true); err != nil {
			return err
		}
		if lane == g.Lanes-1 {
			break
		}

		// even lanes turn left onto the offset, odd lanes turn right
		clockwise := lane%2 == 1
		s.step(fmt.Sprintf("turn %d", lane+1))
		if err := s.drive.Rotate(ctx, turnRate, turnAngle, clockwise); err != nil {
			return err
		}
		s.step(fmt.Sprintf("offset %d", lane+1))
		if err := s.drive.MoveStraight(ctx, g.Speed, g.LaneOffset, true); err != nil {
			return err
		}
		s.step(fmt.Sprintf("align lane %d", lane+2))
		if err := s.drive.OrientTo(ctx, laneHeading(lane+1)); err != nil {
			return err
		}
	}
	return nil
}

// laneHeading is east for even lanes and west for odd ones.
func laneHeading(lane int) float64 {
	if lane%2 == 0 {
		return 0
	}
	return math.Pi
}

func (s *Sequencer) spiral(ctx context.Context) error {
	sp := s.cfg.Spiral
	if !s.poses.Observed() {
		return fmt.Errorf("%s: %w", Spiral, motion.ErrPoseUnavailable)
	}

	s.step("spiral")
	rate := motion.NewRate(s.clock, sp.Hz)
	maxDuration := s.cfg.Motion.MaxDuration()
	start := s.clock.Now()
	rk := sp.InitialRadius
	ticks := 0
	defer func() {
		metrics.PrimitiveTicks.WithLabelValues(Spiral).Add(float64(ticks))
	}()

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w: %v", Spiral, motion.ErrCancelled, err)
		}
		p := s.poses.Current()
		if p.X > sp.BoundX && p.Y > sp.BoundY {
			break
		}
		if maxDuration > 0 && s.clock.Now().Sub(start) >= maxDuration {
			return fmt.Errorf("%s: %w after %v at (%.2f, %.2f)", Spiral, motion.ErrTimeout, maxDuration, p.X, p.Y)
		}

		rk += sp.RadiusStep
		if err := s.cmd.Publish(ctx, motion.PlanarTwist(rk, sp.AngularSpeed)); err != nil {
			return fmt.Errorf("%s: publish: %w", Spiral, err)
		}
		ticks++
		if err := rate.Sleep(ctx); err != nil {
			return fmt.Errorf("%s: %w: %v", Spiral, motion.ErrCancelled, err)
		}
	}
	s.logger.Debugf("%s: left bounds after %d ticks, rk=%.2f", Spiral, ticks, rk)

	if err := s.brake(ctx); err != nil {
		return err
	}
	return s.home(ctx)
}

func (s *Sequencer) home(ctx context.Context) error {
	s.step("home")
	if err := s.pause(ctx); err != nil {
		return err
	}
	if err := s.drive.OrientTo(ctx, motion.DegreesToRadians(s.cfg.Home.HeadingDeg)); err != nil {
		return err
	}
	return s.pause(ctx)
}
