package services

import (
	"context"
	"path/filepath"
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

type fakeEvents struct {
	mu    sync.Mutex
	types []string
}

func (e *fakeEvents) PublishJSON(topic, messageType string, data interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, messageType)
	return nil
}

func (e *fakeEvents) count(messageType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.types {
		if t == messageType {
			n++
		}
	}
	return n
}

type missionRig struct {
	svc     *MissionService
	rec     *motiontest.Recorder
	tracker *pose.Tracker
	events  *fakeEvents
	topics  []string
	mu      sync.Mutex
}

func newMissionRig(t *testing.T) *missionRig {
	t.Helper()
	configs, err := NewMissionConfigService(filepath.Join(t.TempDir(), "mission.yaml"), customlog.NewNopLogger())
	require.NoError(t, err)

	r := &missionRig{
		rec:     &motiontest.Recorder{},
		tracker: pose.NewTracker(),
		events:  &fakeEvents{},
	}
	factory := func(cfg *config.Config) motion.Commander {
		r.mu.Lock()
		r.topics = append(r.topics, cfg.Topics.CmdVel)
		r.mu.Unlock()
		return r.rec
	}
	r.svc = NewMissionService(configs, r.tracker, factory, motiontest.NewFakeClock(), 4, customlog.NewNopLogger())
	r.svc.SetEventPublisher(r.events)
	r.svc.Start()
	t.Cleanup(r.svc.Stop)
	return r
}

func (r *missionRig) waitResult(t *testing.T, id string) MissionStatus {
	t.Helper()
	var st MissionStatus
	require.Eventually(t, func() bool {
		st = r.svc.Status()
		return st.LastResult != nil && st.LastResult.ID == id && len(st.Active) == 0
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestMissionServiceRunsPrimitive(t *testing.T) {
	r := newMissionRig(t)

	job, err := r.svc.RunPrimitive(PrimitiveRequest{Kind: PrimitiveMoveStraight, Speed: 1, Distance: 0.5, Forward: true})
	require.NoError(t, err)
	assert.Equal(t, PrimitiveMoveStraight, job.Name)

	st := r.waitResult(t, job.ID)
	assert.Empty(t, st.LastResult.Error)
	assert.InDelta(t, 50, r.rec.NonZero(), 1)
	last, _ := r.rec.Last()
	assert.True(t, last.IsZero())
	assert.Equal(t, []string{"/turtle1/cmd_vel"}, r.topics)
	assert.Eventually(t, func() bool {
		return r.events.count("JOB_RESULT") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMissionServiceRunsManeuver(t *testing.T) {
	r := newMissionRig(t)
	r.tracker.Update(pose.Pose{Theta: 0})

	job, err := r.svc.RunManeuver(maneuver.Home)
	require.NoError(t, err)

	st := r.waitResult(t, job.ID)
	assert.Empty(t, st.LastResult.Error)
	assert.Equal(t, maneuver.PhaseDone, st.Maneuver.Phase)
	assert.Equal(t, maneuver.Home, st.Maneuver.Maneuver)
	assert.True(t, st.PoseSeen)
	assert.Greater(t, r.events.count(MsgTypeManeuverStatus), 2)
	assert.Greater(t, r.rec.NonZero(), 0)
}

func TestMissionServiceReportsFailure(t *testing.T) {
	r := newMissionRig(t)

	// no pose has been observed
	job, err := r.svc.RunPrimitive(PrimitiveRequest{Kind: PrimitiveSeekGoal, X: 1, Y: 1, Tolerance: 0.1})
	require.NoError(t, err)

	st := r.waitResult(t, job.ID)
	assert.Contains(t, st.LastResult.Error, motion.ErrPoseUnavailable.Error())
}

func TestMissionServiceRejectsUnknown(t *testing.T) {
	r := newMissionRig(t)

	_, err := r.svc.RunManeuver("zigzag")
	assert.ErrorIs(t, err, maneuver.ErrUnknownManeuver)
	_, err = r.svc.RunPrimitive(PrimitiveRequest{Kind: "strafe"})
	assert.ErrorIs(t, err, ErrUnknownPrimitive)
}

func TestMissionServiceCancel(t *testing.T) {
	r := newMissionRig(t)
	r.tracker.Update(pose.Pose{})

	running := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	r.rec.OnPublish = func(tw motion.Twist) {
		if tw.IsZero() {
			return
		}
		once.Do(func() {
			close(running)
			<-release
		})
	}

	job, err := r.svc.RunManeuver(maneuver.Spiral)
	require.NoError(t, err)
	<-running

	err = r.svc.ManualCommand(context.Background(), motion.PlanarTwist(1, 0))
	assert.ErrorIs(t, err, ErrBusy)

	assert.True(t, r.svc.Cancel())
	close(release)

	st := r.waitResult(t, job.ID)
	assert.Contains(t, st.LastResult.Error, motion.ErrCancelled.Error())
	assert.Equal(t, maneuver.PhaseCancelled, st.Maneuver.Phase)
	last, _ := r.rec.Last()
	assert.True(t, last.IsZero())

	require.NoError(t, r.svc.ManualCommand(context.Background(), motion.PlanarTwist(1, 0)))
	last, _ = r.rec.Last()
	assert.Equal(t, motion.PlanarTwist(1, 0), last)
}
