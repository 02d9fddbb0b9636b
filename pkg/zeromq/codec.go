package zeromq

import (
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/open-teleop/cleaner/domain/motion"
	"github.com/open-teleop/cleaner/domain/pose"
	message "github.com/open-teleop/cleaner/pkg/flatbuffers/cleaner/message"
)

// minTableSize is the smallest buffer holding a root offset and a vtable.
const minTableSize = 8

// EncodeTwist serializes cmd as a flatbuffer Twist stamped with ts.
func EncodeTwist(cmd motion.Twist, ts time.Time) []byte {
	builder := flatbuffers.NewBuilder(128)
	message.TwistStart(builder)
	message.TwistAddLinearX(builder, cmd.Linear.X)
	message.TwistAddLinearY(builder, cmd.Linear.Y)
	message.TwistAddLinearZ(builder, cmd.Linear.Z)
	message.TwistAddAngularX(builder, cmd.Angular.X)
	message.TwistAddAngularY(builder, cmd.Angular.Y)
	message.TwistAddAngularZ(builder, cmd.Angular.Z)
	message.TwistAddTimestampNs(builder, ts.UnixNano())
	message.FinishTwistBuffer(builder, message.TwistEnd(builder))
	return builder.FinishedBytes()
}

// DecodeTwist parses a flatbuffer Twist.
func DecodeTwist(data []byte) (cmd motion.Twist, ts time.Time, err error) {
	defer recoverDecode("Twist", &err)
	if len(data) < minTableSize {
		return motion.Twist{}, time.Time{}, fmt.Errorf("%w: Twist of %d bytes", ErrInvalidMessage, len(data))
	}
	fb := message.GetRootAsTwist(data, 0)
	cmd = motion.Twist{
		Linear:  motion.Vector3{X: fb.LinearX(), Y: fb.LinearY(), Z: fb.LinearZ()},
		Angular: motion.Vector3{X: fb.AngularX(), Y: fb.AngularY(), Z: fb.AngularZ()},
	}
	return cmd, time.Unix(0, fb.TimestampNs()), nil
}

// EncodePose serializes p as a flatbuffer Pose.
func EncodePose(p pose.Pose) []byte {
	builder := flatbuffers.NewBuilder(128)
	message.PoseStart(builder)
	message.PoseAddX(builder, p.X)
	message.PoseAddY(builder, p.Y)
	message.PoseAddTheta(builder, p.Theta)
	message.PoseAddLinearVelocity(builder, p.LinearVelocity)
	message.PoseAddAngularVelocity(builder, p.AngularVelocity)
	if !p.Stamp.IsZero() {
		message.PoseAddTimestampNs(builder, p.Stamp.UnixNano())
	}
	message.FinishPoseBuffer(builder, message.PoseEnd(builder))
	return builder.FinishedBytes()
}

// DecodePose parses a flatbuffer Pose. A missing timestamp decodes as the
// zero time.
func DecodePose(data []byte) (p pose.Pose, err error) {
	defer recoverDecode("Pose", &err)
	if len(data) < minTableSize {
		return pose.Pose{}, fmt.Errorf("%w: Pose of %d bytes", ErrInvalidMessage, len(data))
	}
	fb := message.GetRootAsPose(data, 0)
	p = pose.Pose{
		X:               fb.X(),
		Y:               fb.Y(),
		Theta:           fb.Theta(),
		LinearVelocity:  fb.LinearVelocity(),
		AngularVelocity: fb.AngularVelocity(),
	}
	if ns := fb.TimestampNs(); ns != 0 {
		p.Stamp = time.Unix(0, ns)
	}
	return p, nil
}

// recoverDecode turns the index panics of a truncated buffer into an error.
func recoverDecode(table string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: corrupt %s: %v", ErrInvalidMessage, table, r)
	}
}
