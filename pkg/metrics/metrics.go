// Package metrics holds the Prometheus collectors of the controller. They
// are registered on the default registry and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cleaner"

var (
	TwistsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "twists_published_total",
		Help:      "Velocity commands handed to the transport.",
	})
	TwistsClamped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "twists_clamped_total",
		Help:      "Velocity commands that exceeded a configured limit.",
	})
	PoseUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pose_updates_total",
		Help:      "Pose observations merged into the tracker.",
	})
	PrimitiveTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "primitive_ticks_total",
		Help:      "Control loop iterations per motion primitive.",
	}, []string{"primitive"})
	PrimitiveRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "primitive_runs_total",
		Help:      "Completed motion primitive invocations by result.",
	}, []string{"primitive", "result"})
	ManeuverRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maneuver_runs_total",
		Help:      "Completed maneuvers by result.",
	}, []string{"maneuver", "result"})
	ManeuverActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "maneuver_active",
		Help:      "1 while a maneuver or primitive job is running.",
	})
)

// Result labels used with PrimitiveRuns and ManeuverRuns.
const (
	ResultDone      = "done"
	ResultFailed    = "failed"
	ResultCancelled = "cancelled"
	ResultTimeout   = "timeout"
)
