package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/open-teleop/cleaner/domain/maneuver"
	"github.com/open-teleop/cleaner/domain/motion"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/pkg/processing"
	"github.com/open-teleop/cleaner/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Mission is the mission service surface used by the HTTP and WebSocket
// handlers.
type Mission interface {
	RunManeuver(name string) (services.JobInfo, error)
	RunPrimitive(req services.PrimitiveRequest) (services.JobInfo, error)
	Cancel() bool
	Status() services.MissionStatus
	ManualCommand(ctx context.Context, cmd motion.Twist) error
}

// TopicLister reports per-topic traffic.
type TopicLister interface {
	GetTopicStats() []processing.TopicInfo
}

// MissionHandler serves the maneuver, primitive and status endpoints.
type MissionHandler struct {
	mission Mission
	topics  TopicLister
	logger  customlog.Logger
}

// NewMissionHandler creates a new handler for mission endpoints.
func NewMissionHandler(mission Mission, topics TopicLister, logger customlog.Logger) *MissionHandler {
	return &MissionHandler{
		mission: mission,
		topics:  topics,
		logger:  logger,
	}
}

// RegisterMissionRoutes registers the mission endpoints and /metrics.
func RegisterMissionRoutes(app *fiber.App, mission Mission, topics TopicLister, logger customlog.Logger) {
	h := NewMissionHandler(mission, topics, logger)

	apiGroup := app.Group("/api/v1")
	apiGroup.Get("/maneuvers", h.handleListManeuvers)
	apiGroup.Post("/maneuvers/:name", h.handleRunManeuver)
	apiGroup.Post("/primitives/:kind", h.handleRunPrimitive)
	apiGroup.Delete("/jobs/current", h.handleCancel)
	apiGroup.Get("/status", h.handleStatus)
	apiGroup.Get("/pose", h.handlePose)
	apiGroup.Get("/topics", h.handleTopics)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	logger.Infof("Registered mission API endpoints under /api/v1")
}

func (h *MissionHandler) handleListManeuvers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"maneuvers": maneuver.Names()})
}

func (h *MissionHandler) handleRunManeuver(c *fiber.Ctx) error {
	name := c.Params("name")
	job, err := h.mission.RunManeuver(name)
	if err != nil {
		h.logger.Warnf("Rejected maneuver %s: %v", name, err)
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(http.StatusAccepted).JSON(job)
}

func (h *MissionHandler) handleRunPrimitive(c *fiber.Ctx) error {
	var req services.PrimitiveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body: " + err.Error()})
		}
	}
	req.Kind = c.Params("kind")

	job, err := h.mission.RunPrimitive(req)
	if err != nil {
		h.logger.Warnf("Rejected primitive %s: %v", req.Kind, err)
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(http.StatusAccepted).JSON(job)
}

func (h *MissionHandler) handleCancel(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cancelled": h.mission.Cancel()})
}

func (h *MissionHandler) handleStatus(c *fiber.Ctx) error {
	return c.JSON(h.mission.Status())
}

func (h *MissionHandler) handlePose(c *fiber.Ctx) error {
	st := h.mission.Status()
	if !st.PoseSeen {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "no pose received yet"})
	}
	return c.JSON(st.Pose)
}

func (h *MissionHandler) handleTopics(c *fiber.Ctx) error {
	if h.topics == nil {
		return c.JSON([]processing.TopicInfo{})
	}
	return c.JSON(h.topics.GetTopicStats())
}

// statusFor maps mission service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, maneuver.ErrUnknownManeuver), errors.Is(err, services.ErrUnknownPrimitive):
		return http.StatusBadRequest
	case errors.Is(err, processing.ErrQueueFull), errors.Is(err, services.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, processing.ErrPoolStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
