// Package scaler drives the rescale engine that turns cropped viewports back
// into full-size output frames.
//
// An Engine is a byte-stream transformer: raw RGB24 at its input geometry is
// written in, raw RGB24 at the fixed output geometry is read out. No framing
// exists beyond aggregate byte counts, so engines are interchangeable: an
// ffmpeg subprocess in production, an in-process resampler for tests or
// hosts without ffmpeg.
package scaler

import (
	"io"

	"github.com/smazurov/zoomrelay/internal/frame"
)

// Engine is one live rescale instance bound to an input geometry.
type Engine interface {
	// Write feeds input bytes. It may accept fewer bytes than offered only
	// together with an error.
	io.Writer
	// Read returns scaled output bytes as they become available.
	io.Reader
	// Drain stops input, copies all remaining output to dst and releases the
	// engine. It returns the number of bytes copied.
	Drain(dst io.Writer) (int64, error)
	// Input is the geometry the engine was spawned for.
	Input() frame.Size
}

// Spawner creates engines for a given input and output geometry.
type Spawner interface {
	Spawn(in, out frame.Size) (Engine, error)
	Name() string
}
