package motion

import "context"

// Vector3 is a 3D vector with geometry_msgs field names.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Twist is a velocity command: linear velocity in the body frame and angular
// velocity about each axis.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// PlanarTwist builds a differential-drive command: forward speed v and yaw
// rate w, every other component zero.
func PlanarTwist(v, w float64) Twist {
	return Twist{
		Linear:  Vector3{X: v},
		Angular: Vector3{Z: w},
	}
}

// IsZero reports whether the command stops the robot.
func (t Twist) IsZero() bool {
	return t == Twist{}
}

// Commander is the velocity sink. Publish is fire-and-forget; an error means
// the command never left the process.
type Commander interface {
	Publish(ctx context.Context, cmd Twist) error
}

// CommanderFunc adapts a function to Commander.
type CommanderFunc func(ctx context.Context, cmd Twist) error

// Publish calls f.
func (f CommanderFunc) Publish(ctx context.Context, cmd Twist) error {
	return f(ctx, cmd)
}
