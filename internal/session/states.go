// ABOUTME: Session lifecycle states
// ABOUTME: Owned exclusively by the engine; all other components only read them
package session

// State is the session lifecycle state. Only the engine writes it.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateConnecting
	StateActive
	StateEnding
	StateClosed
	StateError
)

// String returns the display name of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// startable reports whether Start may begin a new attempt from s.
// StateError is a valid retry point: a failed attempt behaves like idle
// with the error message preserved for display.
func (s State) startable() bool {
	return s == StateIdle || s == StateClosed || s == StateError
}
