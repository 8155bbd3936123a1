// Package crop holds the viewport shared between the control server and the relay loop.
package crop

import (
	"sync"

	"github.com/smazurov/zoomrelay/internal/frame"
)

// State is a lock-guarded viewport. Read returns a copy; the lock is held
// only for the copy itself.
type State struct {
	mu   sync.Mutex
	view frame.Viewport
}

// NewState returns a state initialised to the full frame.
func NewState(size frame.Size) *State {
	return &State{view: frame.Full(size)}
}

// Read returns a snapshot of the current viewport.
func (s *State) Read() frame.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Write replaces the viewport and returns the previous value.
func (s *State) Write(v frame.Viewport) frame.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.view
	s.view = v
	return prev
}
