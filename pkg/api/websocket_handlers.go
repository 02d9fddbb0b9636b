package api

import (
	"context"
	"encoding/json"
	"errors"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/open-teleop/cleaner/domain/pose"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/services"
)

// PoseReader exposes the latest pose with its update count.
type PoseReader interface {
	Snapshot() (pose.Pose, uint64)
}

// DefaultPoseStreamInterval paces /ws/pose.
const DefaultPoseStreamInterval = 100 * time.Millisecond

// RegisterWebSocketRoutes mounts /ws/control and /ws/pose.
func RegisterWebSocketRoutes(app *fiber.App, mission Mission, poses PoseReader, interval time.Duration, logger customlog.Logger) {
	if interval <= 0 {
		interval = DefaultPoseStreamInterval
	}

	ws := app.Group("/ws")
	ws.Use(func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	ws.Get("/control", websocket.New(func(conn *websocket.Conn) {
		ControlWebSocketHandler(conn, logger, mission)
	}))
	ws.Get("/pose", websocket.New(func(conn *websocket.Conn) {
		PoseWebSocketHandler(conn, logger, poses, interval)
	}))

	logger.Infof("Registered WebSocket endpoints under /ws")
}

// ControlWebSocketHandler applies operator Twist messages while no mission
// job owns the robot.
func ControlWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, mission Mission) {
	logger.Infof("Control WebSocket connected: %s", conn.RemoteAddr())
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			logClose(logger, "Control", err)
			break
		}
		if mt != websocket.TextMessage {
			logger.Infof("Ignoring non-text Control WS message type: %d", mt)
			continue
		}

		reply := handleControlMessage(msg, mission, logger)
		if reply == nil {
			continue
		}
		if err := conn.WriteJSON(reply); err != nil {
			logClose(logger, "Control", err)
			break
		}
	}
	logger.Infof("Control WebSocket disconnected: %s", conn.RemoteAddr())
}

// handleControlMessage returns a reply only when the command was not applied.
func handleControlMessage(msg []byte, mission Mission, logger customlog.Logger) *ControlReply {
	var twist TwistMsg
	if err := json.Unmarshal(msg, &twist); err != nil {
		logger.Warnf("Failed to unmarshal Twist command from WS: %v. Message: %s", err, string(msg))
		return &ControlReply{Error: "invalid twist: " + err.Error()}
	}

	logger.Debugf("Received Twist command via WS: LinearX=%.2f, AngularZ=%.2f", twist.Linear.X, twist.Angular.Z)
	if err := mission.ManualCommand(context.Background(), twist.Twist()); err != nil {
		if !errors.Is(err, services.ErrBusy) {
			logger.Errorf("Failed to publish manual command: %v", err)
		}
		return &ControlReply{Error: err.Error()}
	}
	return nil
}

// PoseWebSocketHandler streams every new pose at most once per interval.
func PoseWebSocketHandler(conn *websocket.Conn, logger customlog.Logger, poses PoseReader, interval time.Duration) {
	logger.Infof("Pose WebSocket connected: %s", conn.RemoteAddr())

	// The read side only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var sent uint64
	for {
		select {
		case <-closed:
			logger.Infof("Pose WebSocket disconnected: %s", conn.RemoteAddr())
			return
		case <-ticker.C:
			msg, ok := nextPose(poses, sent)
			if !ok {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				logClose(logger, "Pose", err)
				return
			}
			sent = msg.Seq
		}
	}
}

// nextPose returns the current pose if it is newer than seq.
func nextPose(poses PoseReader, seq uint64) (PoseMsg, bool) {
	p, cur := poses.Snapshot()
	if cur == 0 || cur == seq {
		return PoseMsg{}, false
	}
	msg := PoseMsg{
		X:               p.X,
		Y:               p.Y,
		Theta:           p.Theta,
		LinearVelocity:  p.LinearVelocity,
		AngularVelocity: p.AngularVelocity,
		Seq:             cur,
	}
	if !p.Stamp.IsZero() {
		msg.TimestampNs = p.Stamp.UnixNano()
	}
	return msg, true
}

func logClose(logger customlog.Logger, name string, err error) {
	switch {
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		logger.Errorf("%s WS read error: %v", name, err)
	case errors.Is(err, websocket.ErrCloseSent), errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNRESET):
		logger.Infof("%s WS connection closed normally.", name)
	default:
		logger.Infof("%s WS connection closed: %v", name, err)
	}
}
