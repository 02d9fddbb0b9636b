package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/cleaner/domain/maneuver"
	"github.com/open-teleop/cleaner/domain/motion"
	"github.com/open-teleop/cleaner/domain/pose"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/pkg/processing"
	"github.com/open-teleop/cleaner/services"
)

type fakeMission struct {
	err        error
	cancelled  bool
	primitives []services.PrimitiveRequest
	manual     []motion.Twist
	status     services.MissionStatus
}

func (f *fakeMission) RunManeuver(name string) (services.JobInfo, error) {
	if f.err != nil {
		return services.JobInfo{}, f.err
	}
	return services.JobInfo{ID: "7", Name: name}, nil
}

func (f *fakeMission) RunPrimitive(req services.PrimitiveRequest) (services.JobInfo, error) {
	if f.err != nil {
		return services.JobInfo{}, f.err
	}
	f.primitives = append(f.primitives, req)
	return services.JobInfo{ID: "8", Name: req.Kind}, nil
}

func (f *fakeMission) Cancel() bool {
	f.cancelled = true
	return true
}

func (f *fakeMission) Status() services.MissionStatus { return f.status }

func (f *fakeMission) ManualCommand(_ context.Context, cmd motion.Twist) error {
	if f.err != nil {
		return f.err
	}
	f.manual = append(f.manual, cmd)
	return nil
}

type fakeTopics []processing.TopicInfo

func (f fakeTopics) GetTopicStats() []processing.TopicInfo { return f }

func newMissionApp(m Mission) *fiber.App {
	app := fiber.New()
	RegisterMissionRoutes(app, m, fakeTopics{{Topic: "/turtle1/pose", StatCount: 3}}, customlog.NewNopLogger())
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func TestRunManeuverEndpoint(t *testing.T) {
	app := newMissionApp(&fakeMission{})

	code, body := doJSON(t, app, http.MethodPost, "/api/v1/maneuvers/grid", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "grid", body["name"])
	assert.Equal(t, "7", body["id"])
}

func TestEndpointsMapErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: %q", maneuver.ErrUnknownManeuver, "zigzag"), http.StatusBadRequest},
		{fmt.Errorf("submit grid: %w", processing.ErrQueueFull), http.StatusConflict},
		{processing.ErrPoolStopped, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		app := newMissionApp(&fakeMission{err: c.err})
		code, body := doJSON(t, app, http.MethodPost, "/api/v1/maneuvers/grid", "")
		assert.Equal(t, c.code, code, "err=%v", c.err)
		assert.Equal(t, c.err.Error(), body["error"])
	}
}

func TestRunPrimitiveEndpoint(t *testing.T) {
	m := &fakeMission{}
	app := newMissionApp(m)

	code, _ := doJSON(t, app, http.MethodPost, "/api/v1/primitives/seek_goal", `{"kind":"ignored","x":3,"y":4,"tolerance":0.1}`)
	assert.Equal(t, http.StatusAccepted, code)
	require.Len(t, m.primitives, 1)
	assert.Equal(t, services.PrimitiveRequest{Kind: "seek_goal", X: 3, Y: 4, Tolerance: 0.1}, m.primitives[0])

	code, _ = doJSON(t, app, http.MethodPost, "/api/v1/primitives/move_straight", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCancelStatusAndPose(t *testing.T) {
	m := &fakeMission{}
	app := newMissionApp(m)

	code, body := doJSON(t, app, http.MethodDelete, "/api/v1/jobs/current", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["cancelled"])
	assert.True(t, m.cancelled)

	code, _ = doJSON(t, app, http.MethodGet, "/api/v1/pose", "")
	assert.Equal(t, http.StatusNotFound, code)

	m.status = services.MissionStatus{PoseSeen: true, Pose: pose.Pose{X: 5.5, Y: 2}, Queued: 1}
	code, body = doJSON(t, app, http.MethodGet, "/api/v1/pose", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5.5, body["x"])

	code, body = doJSON(t, app, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, body["queued"])
	assert.Equal(t, true, body["pose_seen"])
}

func TestListingEndpoints(t *testing.T) {
	app := newMissionApp(&fakeMission{})

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/maneuvers", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["maneuvers"], len(maneuver.Names()))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/topics", nil))
	require.NoError(t, err)
	var topics []processing.TopicInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&topics))
	require.Len(t, topics, 1)
	assert.Equal(t, int64(3), topics[0].StatCount)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissionConfigEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mission.yaml")
	configs, err := services.NewMissionConfigService(path, customlog.NewNopLogger())
	require.NoError(t, err)

	app := fiber.New()
	RegisterConfigRoutes(app, configs, customlog.NewNopLogger())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/config/mission", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-yaml", resp.Header.Get(fiber.HeaderContentType))

	put := func(body string) int {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/config/mission", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, "application/x-yaml")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusBadRequest, put(""))
	assert.Equal(t, http.StatusBadRequest, put("grid:\n  lanes: 0\n"))
	assert.Equal(t, http.StatusOK, put("config_id: \"from-api\"\npause_seconds: 0.25\n"))
	assert.Equal(t, "from-api", configs.GetCurrentConfig().ConfigID)
	assert.Equal(t, 250*time.Millisecond, configs.GetCurrentConfig().Pause())
}

func TestHandleControlMessage(t *testing.T) {
	m := &fakeMission{}
	log := customlog.NewNopLogger()

	assert.Nil(t, handleControlMessage([]byte(`{"linear":{"x":0.5},"angular":{"z":-1}}`), m, log))
	require.Len(t, m.manual, 1)
	assert.Equal(t, motion.PlanarTwist(0.5, -1), m.manual[0])

	reply := handleControlMessage([]byte(`nope`), m, log)
	require.NotNil(t, reply)
	assert.Contains(t, reply.Error, "invalid twist")

	m.err = services.ErrBusy
	reply = handleControlMessage([]byte(`{"linear":{"x":1}}`), m, log)
	require.NotNil(t, reply)
	assert.Equal(t, services.ErrBusy.Error(), reply.Error)
}

type fakePoses struct {
	p   pose.Pose
	seq uint64
}

func (f *fakePoses) Snapshot() (pose.Pose, uint64) { return f.p, f.seq }

func TestNextPoseOnlyOnChange(t *testing.T) {
	poses := &fakePoses{}
	_, ok := nextPose(poses, 0)
	assert.False(t, ok, "nothing received yet")

	poses.p = pose.Pose{X: 1, Theta: 0.5, Stamp: time.Unix(0, 77)}
	poses.seq = 4
	msg, ok := nextPose(poses, 0)
	require.True(t, ok)
	assert.Equal(t, PoseMsg{X: 1, Theta: 0.5, TimestampNs: 77, Seq: 4}, msg)

	_, ok = nextPose(poses, 4)
	assert.False(t, ok)
}
