package processing

import (
	"encoding/json"
	"time"

	customlog "github.com/open-teleop/cleaner/pkg/log"
)

// MsgTypeJobResult is the envelope type of published job results.
const MsgTypeJobResult = "JOB_RESULT"

// MessagePublisher defines the interface for publishing messages
type MessagePublisher interface {
	PublishJSON(topic string, messageType string, data interface{}) error
}

// LoggingResultHandler logs job results and publishes them on the events
// topic.
type LoggingResultHandler struct {
	logger    customlog.Logger
	publisher MessagePublisher
	topic     func() string
}

// NewLoggingResultHandler creates a new logging result handler. topic is
// evaluated per result so it follows config updates; publisher may be nil.
func NewLoggingResultHandler(logger customlog.Logger, publisher MessagePublisher, topic func() string) *LoggingResultHandler {
	return &LoggingResultHandler{
		logger:    logger,
		publisher: publisher,
		topic:     topic,
	}
}

// HandleResult handles a finished job
func (h *LoggingResultHandler) HandleResult(result *JobResult) {
	elapsed := result.Finished.Sub(result.Started).Round(time.Millisecond)
	if result.Err != nil {
		h.logger.Errorf("Job %s (%s) failed after %v: %v", result.ID, result.Name, elapsed, result.Err)
	} else {
		h.logger.Infof("Job %s (%s) finished in %v", result.ID, result.Name, elapsed)
	}

	if h.publisher == nil || h.topic == nil {
		return
	}
	topic := h.topic()
	if topic == "" {
		return
	}
	if err := h.publisher.PublishJSON(topic, MsgTypeJobResult, result); err != nil {
		h.logger.Errorf("Failed to publish job result on topic '%s': %v", topic, err)
		return
	}
	if data, err := json.Marshal(result); err == nil {
		h.logger.Debugf("Published job result on '%s': %s", topic, data)
	}
}

// CreateHandlerFunc creates a ResultHandler function for the JobPool
func (h *LoggingResultHandler) CreateHandlerFunc() ResultHandler {
	return func(result *JobResult) {
		if result == nil {
			h.logger.Errorf("Received nil JobResult")
			return
		}
		h.HandleResult(result)
	}
}
