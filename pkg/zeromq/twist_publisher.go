package zeromq

import (
	"context"
	"math"
	"time"

	"github.com/open-teleop/cleaner/domain/motion"
	"github.com/open-teleop/cleaner/pkg/config"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/pkg/metrics"
)

// MessagePublisher sends one topic-framed message.
type MessagePublisher interface {
	PublishMessage(topic string, data []byte) error
}

// TopicStats counts traffic per topic.
type TopicStats interface {
	UpdateTopicStats(topic string, timestamp int64)
}

// TwistPublisher is the velocity sink on the PUB socket. It applies the
// configured magnitude limits before encoding.
type TwistPublisher struct {
	publisher MessagePublisher
	topic     string
	limits    config.LimitsConfig
	stats     TopicStats
	logger    customlog.Logger
	now       func() time.Time
}

var _ motion.Commander = (*TwistPublisher)(nil)

// NewTwistPublisher publishes on topic. stats may be nil.
func NewTwistPublisher(publisher MessagePublisher, topic string, limits config.LimitsConfig, stats TopicStats, logger customlog.Logger) *TwistPublisher {
	return &TwistPublisher{
		publisher: publisher,
		topic:     topic,
		limits:    limits,
		stats:     stats,
		logger:    logger,
		now:       time.Now,
	}
}

// Publish clamps, encodes and sends cmd.
func (p *TwistPublisher) Publish(_ context.Context, cmd motion.Twist) error {
	out, clamped := Clamp(cmd, p.limits)
	if clamped {
		metrics.TwistsClamped.Inc()
		p.logger.Debugf("Clamped command linear=%.3f angular=%.3f to %.3f %.3f",
			cmd.Linear.X, cmd.Angular.Z, out.Linear.X, out.Angular.Z)
	}

	now := p.now()
	if err := p.publisher.PublishMessage(p.topic, EncodeTwist(out, now)); err != nil {
		return err
	}
	metrics.TwistsPublished.Inc()
	if p.stats != nil {
		p.stats.UpdateTopicStats(p.topic, now.UnixNano())
	}
	return nil
}

// Clamp limits the magnitude of every linear and angular component. A zero
// limit disables that axis group.
func Clamp(cmd motion.Twist, limits config.LimitsConfig) (motion.Twist, bool) {
	clamped := false
	limit := func(v, max float64) float64 {
		if max <= 0 || math.Abs(v) <= max {
			return v
		}
		clamped = true
		return math.Copysign(max, v)
	}
	out := motion.Twist{
		Linear: motion.Vector3{
			X: limit(cmd.Linear.X, limits.MaxLinear),
			Y: limit(cmd.Linear.Y, limits.MaxLinear),
			Z: limit(cmd.Linear.Z, limits.MaxLinear),
		},
		Angular: motion.Vector3{
			X: limit(cmd.Angular.X, limits.MaxAngular),
			Y: limit(cmd.Angular.Y, limits.MaxAngular),
			Z: limit(cmd.Angular.Z, limits.MaxAngular),
		},
	}
	return out, clamped
}
