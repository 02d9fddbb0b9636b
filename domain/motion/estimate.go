package motion

import (
	"math"
	"time"

	"github.com/open-teleop/cleaner/domain/pose"
)

// PoseSource is the read side of the pose tracker.
type PoseSource interface {
	Current() pose.Pose
	Observed() bool
}

// Estimator reports how far a primitive has progressed along its axis since
// Start, in meters or radians.
type Estimator interface {
	Start(now time.Time)
	Progress(now time.Time) float64
}

// TimeIntegratedEstimate is dead reckoning: progress is the commanded rate
// times elapsed time. It tracks the command, not ground truth.
type TimeIntegratedEstimate struct {
	Rate  float64
	start time.Time
}

func (e *TimeIntegratedEstimate) Start(now time.Time) {
	e.start = now
}

func (e *TimeIntegratedEstimate) Progress(now time.Time) float64 {
	return math.Abs(e.Rate) * now.Sub(e.start).Seconds()
}

// PoseDistanceEstimate measures straight-line displacement from the pose
// held when the primitive started.
type PoseDistanceEstimate struct {
	Poses  PoseSource
	origin pose.Pose
}

func (e *PoseDistanceEstimate) Start(time.Time) {
	e.origin = e.Poses.Current()
}

func (e *PoseDistanceEstimate) Progress(time.Time) float64 {
	return e.Poses.Current().DistanceTo(e.origin.X, e.origin.Y)
}

// PoseHeadingEstimate accumulates the absolute heading change between
// successive pose readings, so wrap-around at ±π does not reset it.
type PoseHeadingEstimate struct {
	Poses PoseSource
	last  float64
	swept float64
}

func (e *PoseHeadingEstimate) Start(time.Time) {
	e.last = e.Poses.Current().Theta
	e.swept = 0
}

func (e *PoseHeadingEstimate) Progress(time.Time) float64 {
	theta := e.Poses.Current().Theta
	e.swept += math.Abs(NormalizeAngle(theta - e.last))
	e.last = theta
	return e.swept
}
