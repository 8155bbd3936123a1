// Package relay forwards raw RGB24 frames from a producer to a consumer,
// cropping and rescaling them while a viewport other than the full frame is
// selected.
package relay

import (
	"errors"
	"io"
	"log/slog"

	"github.com/smazurov/zoomrelay/internal/crop"
	"github.com/smazurov/zoomrelay/internal/frame"
	"github.com/smazurov/zoomrelay/internal/metrics"
	"github.com/smazurov/zoomrelay/internal/scaler"
	"github.com/smazurov/zoomrelay/internal/snapshot"
)

// Options configures a Relay.
type Options struct {
	Size      frame.Size
	Input     io.Reader
	Output    io.Writer
	Crop      *crop.State
	Snapshots *snapshot.Relay
	Scaler    *scaler.Manager
	Logger    *slog.Logger
}

// Relay is the data-plane loop. It performs no network I/O and is meant to
// run on a single goroutine.
type Relay struct {
	size      frame.Size
	in        io.Reader
	out       output
	crop      *crop.State
	snapshots *snapshot.Relay
	scaler    *scaler.Manager
	logger    *slog.Logger

	frame     []byte
	extractor *Extractor
	mode      frame.Mode
	frames    uint64
}

// New creates a relay from opts.
func New(opts Options) *Relay {
	return &Relay{
		size:      opts.Size,
		in:        opts.Input,
		out:       output{w: opts.Output},
		crop:      opts.Crop,
		snapshots: opts.Snapshots,
		scaler:    opts.Scaler,
		logger:    opts.Logger,
		frame:     make([]byte, opts.Size.Bytes()),
		extractor: NewExtractor(opts.Size),
	}
}

// Run relays frames until the input ends or the consumer goes away, both of
// which return nil. Any other error is fatal for the relay.
func (r *Relay) Run() error {
	r.logger.Info("Relay started", "size", r.size.String(), "frame_bytes", r.size.Bytes())

	for {
		err := r.Step()
		if err == nil {
			continue
		}
		if errors.Is(err, ErrEndOfInput) {
			// Output still owed by a live engine reaches the consumer before exit.
			if r.scaler.Active() {
				r.logger.Debug("Flushing scaler at end of input")
			}
			if ferr := r.scaler.Finish(r.out); ferr != nil && !IsGraceful(ferr) {
				return ferr
			}
		}
		if IsGraceful(err) {
			r.logger.Info("Relay stopped", "reason", shutdownReason(err), "frames", r.frames)
			return nil
		}
		return err
	}
}

// Step relays exactly one input frame, choosing the path from a fresh
// viewport snapshot.
func (r *Relay) Step() error {
	mode := frame.ModeFor(r.crop.Read(), r.size)
	if mode != r.mode {
		r.logger.Info("Relay mode changed", "from", r.mode.String(), "to", mode.String(), "viewport", mode.View.String())
		r.mode = mode
	}

	var err error
	if mode.Zoomed {
		err = r.zoomed(mode.View)
	} else {
		err = r.passthrough()
	}
	if err != nil {
		return err
	}

	r.frames++
	metrics.FrameRelayed(mode.String())
	if mode.Zoomed {
		metrics.SetViewport(true, mode.View.W*mode.View.H)
	} else {
		metrics.SetViewport(false, r.size.Width*r.size.Height)
	}
	return nil
}

func (r *Relay) passthrough() error {
	// Flush the previous zoom period before any passthrough byte.
	if err := r.scaler.Finish(r.out); err != nil {
		return err
	}

	if err := readFull(r.in, r.frame); err != nil {
		return err
	}
	if _, err := r.out.Write(r.frame); err != nil {
		return err
	}

	if r.snapshots != nil && r.snapshots.TakeRequest() {
		r.snapshots.Send(r.frame)
		r.snapshots.End()
	}
	return nil
}

func (r *Relay) zoomed(view frame.Viewport) error {
	var tap func([]byte)
	snapshotting := r.snapshots != nil && r.snapshots.TakeRequest()
	if snapshotting {
		tap = r.snapshots.Send
	}

	cropped, err := r.extractor.Extract(r.in, view, tap)
	if snapshotting {
		// A snapshot cut short by end of input still gets its end marker.
		r.snapshots.End()
	}
	if err != nil {
		return err
	}

	if err := r.scaler.Prepare(view.Size(), r.out); err != nil {
		return err
	}
	return r.scaler.Transfer(cropped, r.out)
}

func shutdownReason(err error) string {
	if errors.Is(err, ErrEndOfInput) {
		return "end of input"
	}
	return "output closed"
}
