package hyperdeck

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnection marks failures of the control connection itself.
	ErrConnection = errors.New("hyperdeck connection error")
	// ErrTimeout marks commands that were not answered in time.
	ErrTimeout = errors.New("hyperdeck command timeout")
	// ErrCommand marks commands the device rejected.
	ErrCommand = errors.New("hyperdeck command rejected")
)

// ConnectionError reports an unreachable or dropped device.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("hyperdeck %s: connection closed", e.Addr)
	}
	return fmt.Sprintf("hyperdeck %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// CommandError is a 1xx rejection from the device.
type CommandError struct {
	Command string
	Code    int
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: device returned %d %s", e.Command, e.Code, e.Message)
}

func (e *CommandError) Is(target error) bool { return target == ErrCommand }

// TimeoutError reports a command with no reply inside the bound.
type TimeoutError struct {
	Command string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no reply after %s", e.Command, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
