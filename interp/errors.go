package interp

import (
	"errors"
	"fmt"
)

var (
	ErrClosed        = errors.New("runtime closed")
	ErrGuardReleased = errors.New("guard released")
	ErrGuestExited   = errors.New("guest interpreter exited")
	ErrInvalidObject = errors.New("object not usable with this guard")
)

// Exception is a Python exception raised while serving a request.
type Exception struct {
	Type      string
	Message   string
	Traceback string
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// IsException reports whether err carries a Python exception of the given
// type name. An empty name matches any exception.
func IsException(err error, typ string) bool {
	var exc *Exception
	if !errors.As(err, &exc) {
		return false
	}
	return typ == "" || exc.Type == typ
}
