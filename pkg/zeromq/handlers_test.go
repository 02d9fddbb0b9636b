package zeromq

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/cleaner/domain/maneuver"
	"github.com/open-teleop/cleaner/pkg/config"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/pkg/processing"
	"github.com/open-teleop/cleaner/services"
)

type fakeMission struct {
	maneuvers  []string
	primitives []services.PrimitiveRequest
	cancelled  bool
	err        error
}

func (f *fakeMission) RunManeuver(name string) (services.JobInfo, error) {
	if f.err != nil {
		return services.JobInfo{}, f.err
	}
	f.maneuvers = append(f.maneuvers, name)
	return services.JobInfo{ID: "1", Name: name}, nil
}

func (f *fakeMission) RunPrimitive(req services.PrimitiveRequest) (services.JobInfo, error) {
	if f.err != nil {
		return services.JobInfo{}, f.err
	}
	f.primitives = append(f.primitives, req)
	return services.JobInfo{ID: "2", Name: req.Kind}, nil
}

func (f *fakeMission) Cancel() bool {
	f.cancelled = true
	return true
}

func (f *fakeMission) Status() services.MissionStatus {
	return services.MissionStatus{Queued: 3}
}

func newTestDispatcher(mission MissionController) *MessageDispatcher {
	d := NewMessageDispatcher(customlog.NewNopLogger())
	h := NewMissionHandler(mission, customlog.NewNopLogger())
	for _, t := range []string{MsgTypeManeuverRequest, MsgTypePrimitiveRequest, MsgTypeCancelRequest, MsgTypeStatusRequest} {
		d.RegisterHandler(t, h)
	}
	return d
}

func decodeResponse(t *testing.T, data []byte) (string, map[string]interface{}) {
	t.Helper()
	var msg struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg.Type, msg.Data
}

func TestMissionHandlerRequests(t *testing.T) {
	mission := &fakeMission{}
	d := newTestDispatcher(mission)

	resp, err := d.Dispatch([]byte(`{"type":"MANEUVER_REQUEST","timestamp":1,"data":{"name":"spiral"}}`))
	require.NoError(t, err)
	typ, data := decodeResponse(t, resp)
	assert.Equal(t, MsgTypeAck, typ)
	assert.Equal(t, "spiral", data["name"])
	assert.Equal(t, []string{"spiral"}, mission.maneuvers)

	resp, err = d.Dispatch([]byte(`{"type":"PRIMITIVE_REQUEST","data":{"kind":"rotate","angular_speed_deg":30,"angle_deg":90,"clockwise":true}}`))
	require.NoError(t, err)
	typ, _ = decodeResponse(t, resp)
	assert.Equal(t, MsgTypeAck, typ)
	require.Len(t, mission.primitives, 1)
	assert.Equal(t, services.PrimitiveRequest{Kind: "rotate", AngularSpeed: 30, Angle: 90, Clockwise: true}, mission.primitives[0])

	resp, err = d.Dispatch([]byte(`{"type":"CANCEL_REQUEST"}`))
	require.NoError(t, err)
	_, data = decodeResponse(t, resp)
	assert.Equal(t, true, data["cancelled"])
	assert.True(t, mission.cancelled)

	resp, err = d.Dispatch([]byte(`{"type":"STATUS_REQUEST"}`))
	require.NoError(t, err)
	typ, data = decodeResponse(t, resp)
	assert.Equal(t, MsgTypeStatusResponse, typ)
	assert.Equal(t, 3.0, data["queued"])
}

func TestDispatchErrors(t *testing.T) {
	d := newTestDispatcher(&fakeMission{})

	_, err := d.Dispatch([]byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = d.Dispatch([]byte(`{"type":"TELEPORT"}`))
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	_, err = d.Dispatch([]byte(`{"type":"MANEUVER_REQUEST"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestErrorResponseCodes(t *testing.T) {
	cases := []struct {
		err  error
		code float64
	}{
		{fmt.Errorf("%w: x", ErrUnknownMessageType), 400},
		{classify(fmt.Errorf("%w: zigzag", maneuver.ErrUnknownManeuver)), 400},
		{classify(processing.ErrQueueFull), 409},
		{classify(processing.ErrPoolStopped), 503},
		{fmt.Errorf("disk on fire"), 500},
	}
	for _, c := range cases {
		typ, data := decodeResponse(t, errorResponse(c.err))
		assert.Equal(t, MsgTypeError, typ)
		assert.Equal(t, c.code, data["code"], "err=%v", c.err)
		assert.Equal(t, c.err.Error(), data["message"])
	}
}

func TestMissionHandlerMapsServiceErrors(t *testing.T) {
	d := newTestDispatcher(&fakeMission{err: fmt.Errorf("submit grid: %w", processing.ErrQueueFull)})

	_, err := d.Dispatch([]byte(`{"type":"MANEUVER_REQUEST","data":{"name":"grid"}}`))
	require.Error(t, err)
	var coded interface{ StatusCode() int }
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, 409, coded.StatusCode())
}

type captureJSON struct {
	topics []string
	types  []string
}

func (c *captureJSON) PublishJSON(topic, messageType string, data interface{}) error {
	c.topics = append(c.topics, topic)
	c.types = append(c.types, messageType)
	return nil
}

func TestConfigPublisherNotification(t *testing.T) {
	c := &captureJSON{}
	p := NewConfigPublisher(c, customlog.NewNopLogger())

	require.NoError(t, p.PublishConfigUpdatedNotification(testConfig()))
	assert.Equal(t, []string{TopicConfigNotification, TopicConfigUpdate}, c.topics)
	assert.Equal(t, []string{MsgTypeConfigUpdated, MsgTypeConfigResponse}, c.types)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.ConfigID = "test"
	return cfg
}
