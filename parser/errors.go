package parser

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrConfig         = errors.New("invalid parser configuration")
	ErrUnavailable    = errors.New("interpreter unavailable")
	ErrModuleLoad     = errors.New("module load failed")
	ErrAttribute      = errors.New("attribute not found")
	ErrInstantiation  = errors.New("instantiation failed")
	ErrInitialization = errors.New("initialization failed")
	ErrParse          = errors.New("parse failed")
)

var (
	ErrBuilderUsed  = errors.New("builder already used")
	ErrClosed       = errors.New("parser closed")
	ErrInvalidInput = errors.New("input is not valid UTF-8")
)

// Error reports a failed build step or parse call. Err is the underlying
// cause, often an *interp.Exception.
type Error struct {
	Kind error
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Name)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}
