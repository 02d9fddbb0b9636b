package motion

import "errors"

// Errors returned by primitives and the goal-seek controller. They are
// wrapped with the operation name; match with errors.Is.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrTimeout          = errors.New("primitive exceeded its maximum duration")
	ErrPoseUnavailable  = errors.New("no pose observation received")
	ErrCancelled        = errors.New("cancelled")
)
