package systems

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks malformed build input: bad surface size, an
	// unsupported resolution, a negative blur radius, degenerate terrain.
	ErrPrecondition = errors.New("precondition violation")

	// ErrIndexOutOfRange is returned when a grid cell outside
	// [0, resolution) is addressed.
	ErrIndexOutOfRange = errors.New("index out of range")
)

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
