package zeromq

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/open-teleop/cleaner/domain/maneuver"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/pkg/processing"
	"github.com/open-teleop/cleaner/services"
)

// MissionController is the part of the mission service exposed to the
// gateway.
type MissionController interface {
	RunManeuver(name string) (services.JobInfo, error)
	RunPrimitive(req services.PrimitiveRequest) (services.JobInfo, error)
	Cancel() bool
	Status() services.MissionStatus
}

// ManeuverRequest is the data of a MANEUVER_REQUEST.
type ManeuverRequest struct {
	Name string `json:"name"`
}

type request struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// requestError carries the code of an ERROR response.
type requestError struct {
	code int
	err  error
}

func (e *requestError) Error() string   { return e.err.Error() }
func (e *requestError) Unwrap() error   { return e.err }
func (e *requestError) StatusCode() int { return e.code }

// MissionHandler answers maneuver, primitive, cancel and status requests.
type MissionHandler struct {
	mission MissionController
	logger  customlog.Logger
}

// NewMissionHandler creates a new handler for mission requests
func NewMissionHandler(mission MissionController, logger customlog.Logger) *MissionHandler {
	return &MissionHandler{
		mission: mission,
		logger:  logger,
	}
}

// HandleMessage processes one request and returns the encoded response.
func (h *MissionHandler) HandleMessage(data []byte) ([]byte, error) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch req.Type {
	case MsgTypeManeuverRequest:
		var m ManeuverRequest
		if err := decodeData(req.Data, &m); err != nil {
			return nil, err
		}
		h.logger.Infof("Gateway requested maneuver %s", m.Name)
		job, err := h.mission.RunManeuver(m.Name)
		if err != nil {
			return nil, classify(err)
		}
		return encode(MsgTypeAck, job)

	case MsgTypePrimitiveRequest:
		var p services.PrimitiveRequest
		if err := decodeData(req.Data, &p); err != nil {
			return nil, err
		}
		h.logger.Infof("Gateway requested primitive %s", p.Kind)
		job, err := h.mission.RunPrimitive(p)
		if err != nil {
			return nil, classify(err)
		}
		return encode(MsgTypeAck, job)

	case MsgTypeCancelRequest:
		cancelled := h.mission.Cancel()
		h.logger.Infof("Gateway requested cancel (running job: %t)", cancelled)
		return encode(MsgTypeAck, map[string]interface{}{"cancelled": cancelled})

	case MsgTypeStatusRequest:
		return encode(MsgTypeStatusResponse, h.mission.Status())

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, req.Type)
	}
}

// Register installs the handler for every mission message type.
func (h *MissionHandler) Register(service *ZeroMQService) {
	for _, t := range []string{MsgTypeManeuverRequest, MsgTypePrimitiveRequest, MsgTypeCancelRequest, MsgTypeStatusRequest} {
		service.RegisterHandler(t, h)
	}
}

func decodeData(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidMessage)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, maneuver.ErrUnknownManeuver), errors.Is(err, services.ErrUnknownPrimitive):
		return &requestError{code: 400, err: err}
	case errors.Is(err, processing.ErrQueueFull):
		return &requestError{code: 409, err: err}
	case errors.Is(err, processing.ErrPoolStopped):
		return &requestError{code: 503, err: err}
	default:
		return err
	}
}

func encode(messageType string, data interface{}) ([]byte, error) {
	out, err := json.Marshal(ZeroMQMessage{
		Type:      messageType,
		Timestamp: float64(time.Now().Unix()),
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize response: %w", err)
	}
	return out, nil
}

// ConfigHandler handles CONFIG_REQUEST messages
type ConfigHandler struct {
	configs services.MissionConfigService
	logger  customlog.Logger
}

// NewConfigHandler creates a new handler for configuration requests
func NewConfigHandler(configs services.MissionConfigService, logger customlog.Logger) *ConfigHandler {
	return &ConfigHandler{
		configs: configs,
		logger:  logger,
	}
}

// HandleMessage returns the active mission config as a CONFIG_RESPONSE.
func (h *ConfigHandler) HandleMessage(data []byte) ([]byte, error) {
	var msg request
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.Type != MsgTypeConfigRequest {
		return nil, fmt.Errorf("unexpected message type: %s", msg.Type)
	}

	h.logger.Debugf("Processing configuration request")
	return encode(MsgTypeConfigResponse, h.configs.GetCurrentConfig())
}
