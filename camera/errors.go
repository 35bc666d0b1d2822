package camera

import (
	"errors"
	"fmt"
)

// ErrChannelClosed is reported for commands still pending when a control
// channel shuts down. They are drained and surfaced, never silently dropped.
var ErrChannelClosed = errors.New("control channel closed")

// ErrQueueFull is reported when a non-blocking Submit cannot enqueue.
var ErrQueueFull = errors.New("control queue full")

// ConnectionError reports a failed device dial or negotiation. The camera
// stays in the Error state; reconnection is an explicit operator action.
type ConnectionError struct {
	Camera ID
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera %s: %s: %v", e.Camera, e.Reason, e.Err)
	}
	return fmt.Sprintf("camera %s: %s", e.Camera, e.Reason)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandError reports a single rejected or orphaned control command. It
// never aborts processing of subsequent queued commands.
type CommandError struct {
	Camera ID
	Cmd    Command
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("camera %s: command %s (%s): %v", e.Camera, e.Cmd.Op, e.Cmd.ID, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }
