package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/open-teleop/cleaner/domain/maneuver"
	"github.com/open-teleop/cleaner/domain/motion"
	"github.com/open-teleop/cleaner/domain/pose"
	"github.com/open-teleop/cleaner/pkg/config"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/pkg/metrics"
	"github.com/open-teleop/cleaner/pkg/processing"
)

// Primitive kinds accepted by RunPrimitive.
const (
	PrimitiveMoveStraight = motion.OpMoveStraight
	PrimitiveRotate       = motion.OpRotate
	PrimitiveOrientTo     = motion.OpOrientTo
	PrimitiveSeekGoal     = motion.OpSeekGoal
)

// MsgTypeManeuverStatus is the envelope type of published maneuver status.
const MsgTypeManeuverStatus = "MANEUVER_STATUS"

var (
	ErrUnknownPrimitive = errors.New("unknown primitive")
	ErrBusy             = errors.New("a mission job is running")
)

// CommanderFactory builds the velocity sink for one config snapshot.
type CommanderFactory func(cfg *config.Config) motion.Commander

// EventPublisher publishes JSON envelopes on a topic.
type EventPublisher interface {
	PublishJSON(topic string, messageType string, data interface{}) error
}

// PrimitiveRequest selects one primitive and its arguments. Angles are in
// degrees.
type PrimitiveRequest struct {
	Kind         string  `json:"kind"`
	Speed        float64 `json:"speed,omitempty"`
	Distance     float64 `json:"distance,omitempty"`
	Forward      bool    `json:"forward,omitempty"`
	AngularSpeed float64 `json:"angular_speed_deg,omitempty"`
	Angle        float64 `json:"angle_deg,omitempty"`
	Clockwise    bool    `json:"clockwise,omitempty"`
	Heading      float64 `json:"heading_deg,omitempty"`
	X            float64 `json:"x,omitempty"`
	Y            float64 `json:"y,omitempty"`
	Tolerance    float64 `json:"tolerance,omitempty"`
}

// JobInfo identifies a submitted job.
type JobInfo struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Queued time.Time `json:"queued"`
}

// MissionStatus is the snapshot served to the API and the gateway.
type MissionStatus struct {
	Active     []processing.ActiveJob `json:"active"`
	Queued     int                    `json:"queued"`
	Maneuver   maneuver.Status        `json:"maneuver"`
	Pose       pose.Pose              `json:"pose"`
	PoseSeen   bool                   `json:"pose_seen"`
	LastResult *processing.JobResult  `json:"last_result,omitempty"`
}

// MissionService queues maneuvers and single primitives on one worker so
// that no two motions ever overlap.
type MissionService struct {
	configs    MissionConfigService
	tracker    *pose.Tracker
	commanders CommanderFactory
	clock      motion.Clock
	pool       *processing.JobPool
	results    *processing.LoggingResultHandler
	logger     customlog.Logger
	nextID     atomic.Uint64

	mu         sync.Mutex
	events     EventPublisher
	maneuver   maneuver.Status
	lastResult *processing.JobResult
}

// NewMissionService wires the job pool. clock may be nil for the wall clock.
func NewMissionService(configs MissionConfigService, tracker *pose.Tracker, commanders CommanderFactory, clock motion.Clock, queueSize int, logger customlog.Logger) *MissionService {
	if clock == nil {
		clock = motion.SystemClock{}
	}
	s := &MissionService{
		configs:    configs,
		tracker:    tracker,
		commanders: commanders,
		clock:      clock,
		pool:       processing.NewJobPool("mission", 1, queueSize, logger),
		logger:     logger,
		maneuver:   maneuver.Status{Phase: maneuver.PhaseIdle},
	}
	s.results = processing.NewLoggingResultHandler(logger, nil, nil)
	s.pool.SetResultHandler(s.handleResult)
	return s
}

// SetEventPublisher enables job result and maneuver status events on the
// configured events topic.
func (s *MissionService) SetEventPublisher(p EventPublisher) {
	results := processing.NewLoggingResultHandler(s.logger, p, func() string {
		return s.configs.GetCurrentConfig().Topics.Events
	})
	s.mu.Lock()
	s.events = p
	s.results = results
	s.mu.Unlock()
}

// Start starts the mission worker.
func (s *MissionService) Start() {
	s.pool.Start()
}

// Stop cancels the running job and stops the worker.
func (s *MissionService) Stop() {
	s.pool.Stop()
}

// RunManeuver queues the named maneuver.
func (s *MissionService) RunManeuver(name string) (JobInfo, error) {
	known := false
	for _, n := range maneuver.Names() {
		known = known || n == name
	}
	if !known {
		return JobInfo{}, fmt.Errorf("%w: %q", maneuver.ErrUnknownManeuver, name)
	}

	return s.submit(name, func(ctx context.Context, cfg *config.Config, drive *motion.Primitives, cmd motion.Commander) error {
		seq := maneuver.New(drive, cmd, s.tracker, s.clock, cfg, s.logger)
		seq.OnStatus(s.onManeuverStatus)
		return seq.Run(ctx, name)
	})
}

// RunPrimitive queues a single primitive.
func (s *MissionService) RunPrimitive(req PrimitiveRequest) (JobInfo, error) {
	var run func(ctx context.Context, p *motion.Primitives) error
	switch req.Kind {
	case PrimitiveMoveStraight:
		run = func(ctx context.Context, p *motion.Primitives) error {
			return p.MoveStraight(ctx, req.Speed, req.Distance, req.Forward)
		}
	case PrimitiveRotate:
		run = func(ctx context.Context, p *motion.Primitives) error {
			return p.Rotate(ctx, motion.DegreesToRadians(req.AngularSpeed), motion.DegreesToRadians(req.Angle), req.Clockwise)
		}
	case PrimitiveOrientTo:
		run = func(ctx context.Context, p *motion.Primitives) error {
			return p.OrientTo(ctx, motion.DegreesToRadians(req.Heading))
		}
	case PrimitiveSeekGoal:
		run = func(ctx context.Context, p *motion.Primitives) error {
			return p.SeekGoal(ctx, motion.Point{X: req.X, Y: req.Y}, req.Tolerance)
		}
	default:
		return JobInfo{}, fmt.Errorf("%w: %q", ErrUnknownPrimitive, req.Kind)
	}

	return s.submit(req.Kind, func(ctx context.Context, _ *config.Config, drive *motion.Primitives, _ motion.Commander) error {
		return run(ctx, drive)
	})
}

type jobFunc func(ctx context.Context, cfg *config.Config, drive *motion.Primitives, cmd motion.Commander) error

func (s *MissionService) submit(name string, fn jobFunc) (JobInfo, error) {
	job := &processing.Job{
		ID:     strconv.FormatUint(s.nextID.Add(1), 10),
		Name:   name,
		Queued: time.Now(),
	}
	job.Run = func(ctx context.Context) error {
		cfg := s.configs.GetCurrentConfig()
		cmd := s.commanders(cfg)
		log := s.logger.WithFields(map[string]interface{}{"job": job.ID, "name": name})
		drive := motion.New(cmd, s.tracker, s.clock, cfg.Motion, log)

		metrics.ManeuverActive.Set(1)
		defer metrics.ManeuverActive.Set(0)
		return fn(ctx, cfg, drive, cmd)
	}

	if err := s.pool.Submit(job); err != nil {
		return JobInfo{}, fmt.Errorf("submit %s: %w", name, err)
	}
	s.logger.Infof("Queued job %s (%s)", job.ID, name)
	return JobInfo{ID: job.ID, Name: name, Queued: job.Queued}, nil
}

// Cancel stops the running job. Its final stop command is still published.
func (s *MissionService) Cancel() bool {
	return s.pool.CancelCurrent()
}

// ManualCommand publishes one operator command while no job is queued or
// running.
func (s *MissionService) ManualCommand(ctx context.Context, cmd motion.Twist) error {
	if s.pool.Busy() {
		return ErrBusy
	}
	return s.commanders(s.configs.GetCurrentConfig()).Publish(ctx, cmd)
}

// Status returns the current mission snapshot.
func (s *MissionService) Status() MissionStatus {
	p, _ := s.tracker.Snapshot()
	st := MissionStatus{
		Active:   s.pool.Active(),
		Queued:   s.pool.GetQueueLength(),
		Pose:     p,
		PoseSeen: s.tracker.Observed(),
	}
	s.mu.Lock()
	st.Maneuver = s.maneuver
	if s.lastResult != nil {
		r := *s.lastResult
		st.LastResult = &r
	}
	s.mu.Unlock()
	return st
}

func (s *MissionService) onManeuverStatus(st maneuver.Status) {
	s.mu.Lock()
	s.maneuver = st
	events := s.events
	s.mu.Unlock()

	if events == nil {
		return
	}
	topic := s.configs.GetCurrentConfig().Topics.Events
	if topic == "" {
		return
	}
	if err := events.PublishJSON(topic, MsgTypeManeuverStatus, st); err != nil {
		s.logger.Debugf("Failed to publish maneuver status: %v", err)
	}
}

func (s *MissionService) handleResult(result *processing.JobResult) {
	s.mu.Lock()
	s.lastResult = result
	results := s.results
	s.mu.Unlock()
	results.HandleResult(result)
}
