package motion_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/cleaner/domain/motion"
	"github.com/open-teleop/cleaner/domain/pose"
	"github.com/open-teleop/cleaner/pkg/config"
)

func TestSeekGoalAtGoalOnlyStops(t *testing.T) {
	r := newRig(t, nil)
	r.tracker.Update(pose.Pose{X: 0, Y: 0, Theta: 0})

	require.NoError(t, r.prims.SeekGoal(context.Background(), motion.Point{}, 0))

	twists := r.rec.Twists()
	require.Len(t, twists, 1)
	assert.True(t, twists[0].IsZero())
	assert.Zero(t, r.clock.Elapsed())
}

func TestSeekGoalProportionalLaw(t *testing.T) {
	r := newRig(t, nil)
	r.tracker.Update(pose.Pose{X: 0, Y: 0, Theta: 0.5})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.rec.OnPublish = func(motion.Twist) { cancel() }

	err := r.prims.SeekGoal(ctx, motion.Point{X: 3, Y: 4}, 0.01)
	require.ErrorIs(t, err, motion.ErrCancelled)

	first := r.rec.Twists()[0]
	assert.InDelta(t, 1.5*5, first.Linear.X, 1e-12)
	assert.InDelta(t, 4.0*(0.9272952180016122-0.5), first.Angular.Z, 1e-9)
	assert.Zero(t, first.Linear.Y)
	assert.Zero(t, first.Linear.Z)
	assert.Zero(t, first.Angular.X)
	assert.Zero(t, first.Angular.Y)
}

func TestSeekGoalConvergesWithinTolerance(t *testing.T) {
	r := newRig(t, func(c *config.MotionConfig) { c.MaxDurationSeconds = 120 })
	r.tracker.Update(pose.Pose{X: 1, Y: 1, Theta: 0})
	r.simulate()

	goal := motion.Point{X: 5, Y: 3}
	require.NoError(t, r.prims.SeekGoal(context.Background(), goal, 0.01))

	assert.LessOrEqual(t, r.tracker.Current().DistanceTo(goal.X, goal.Y), 0.01)
	last, _ := r.rec.Last()
	assert.True(t, last.IsZero())
}

func TestSeekGoalPreconditions(t *testing.T) {
	r := newRig(t, nil)

	err := r.prims.SeekGoal(context.Background(), motion.Point{X: 1}, 0.1)
	require.ErrorIs(t, err, motion.ErrPoseUnavailable)

	r.tracker.Update(pose.Pose{})
	err = r.prims.SeekGoal(context.Background(), motion.Point{X: 1}, -1)
	require.ErrorIs(t, err, motion.ErrInvalidParameter)
	assert.Empty(t, r.rec.Twists())
}

func TestSeekGoalTimeout(t *testing.T) {
	r := newRig(t, func(c *config.MotionConfig) { c.MaxDurationSeconds = 1 })
	r.tracker.Update(pose.Pose{})

	// the pose never moves, so the goal is never reached
	err := r.prims.SeekGoal(context.Background(), motion.Point{X: 1}, 0.1)
	require.ErrorIs(t, err, motion.ErrTimeout)
	assert.Equal(t, 10, r.rec.NonZero())
}
