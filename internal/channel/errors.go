// ABOUTME: Channel error taxonomy
// ABOUTME: Distinguishes open failures, runtime faults and per-frame send failures
package channel

import "fmt"

// OpenError reports a connection failure before the channel opened.
// Fatal to the session attempt; the caller surfaces a retry affordance.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("channel open failed: %v", e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// RuntimeError reports a fault after the channel opened. Recoverable by
// default: the session marks itself disconnected and keeps running.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("channel error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// TransmitError reports a send failure for a single frame. Dropped
// frames never terminate the session; only close and runtime errors do.
type TransmitError struct {
	Err error
}

func (e *TransmitError) Error() string {
	return fmt.Sprintf("frame transmit failed: %v", e.Err)
}

func (e *TransmitError) Unwrap() error { return e.Err }
