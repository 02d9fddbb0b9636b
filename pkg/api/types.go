package api

import "github.com/open-teleop/cleaner/domain/motion"

// --- Data Structures for WebSocket Messages ---

// Vector3 defines a standard 3D vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TwistMsg represents a command velocity message, matching geometry_msgs/Twist.
type TwistMsg struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// Twist converts the message to a motion command.
func (m TwistMsg) Twist() motion.Twist {
	return motion.Twist{
		Linear:  motion.Vector3{X: m.Linear.X, Y: m.Linear.Y, Z: m.Linear.Z},
		Angular: motion.Vector3{X: m.Angular.X, Y: m.Angular.Y, Z: m.Angular.Z},
	}
}

// PoseMsg is one frame of the pose stream.
type PoseMsg struct {
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Theta           float64 `json:"theta"`
	LinearVelocity  float64 `json:"linear_velocity"`
	AngularVelocity float64 `json:"angular_velocity"`
	TimestampNs     int64   `json:"timestamp_ns"`
	Seq             uint64  `json:"seq"`
}

// ControlReply answers a control message that could not be applied.
type ControlReply struct {
	Error string `json:"error"`
}
