package events

import "github.com/smazurov/zoomrelay/internal/frame"

// Event type constants for kelindar/event.
const (
	TypeViewportChanged uint32 = iota + 1
	TypeScalerSpawned
	TypeScalerDrained
	TypeSnapshotServed
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ViewportChangedEvent is published after a zoom_to command updates the crop state.
type ViewportChangedEvent struct {
	Previous frame.Viewport
	Current  frame.Viewport
	Remote   string
}

// Type returns the event type identifier for ViewportChangedEvent.
func (e ViewportChangedEvent) Type() uint32 { return TypeViewportChanged }

// ScalerSpawnedEvent is published when a rescale engine starts for a new input geometry.
type ScalerSpawnedEvent struct {
	Input  frame.Size
	Output frame.Size
	Engine string
}

// Type returns the event type identifier for ScalerSpawnedEvent.
func (e ScalerSpawnedEvent) Type() uint32 { return TypeScalerSpawned }

// ScalerDrainedEvent is published after a rescale engine has been drained and reaped.
type ScalerDrainedEvent struct {
	Input   frame.Size
	Flushed int64 // bytes written to the output while draining
}

// Type returns the event type identifier for ScalerDrainedEvent.
func (e ScalerDrainedEvent) Type() uint32 { return TypeScalerDrained }

// SnapshotServedEvent is published when a get_image response completes.
type SnapshotServedEvent struct {
	Remote string
	Bytes  int64
	Err    error
}

// Type returns the event type identifier for SnapshotServedEvent.
func (e SnapshotServedEvent) Type() uint32 { return TypeSnapshotServed }
