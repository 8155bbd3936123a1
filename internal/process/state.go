package process

import "time"

// State represents the current state of a process.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not running, or exited cleanly
	StateStarting State = "starting" // Being started
	StateRunning  State = "running"  // Accepting input
	StateStopping State = "stopping" // Input closed, draining
	StateError    State = "error"    // Failed to start or to be reaped
)

// Info contains information about a process.
type Info struct {
	ID        string
	State     State
	PID       int
	StartedAt time.Time
	LastError error
}
