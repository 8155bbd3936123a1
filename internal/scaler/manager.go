package scaler

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/smazurov/zoomrelay/internal/events"
	"github.com/smazurov/zoomrelay/internal/frame"
	"github.com/smazurov/zoomrelay/internal/metrics"
)

// writeChunk bounds a single write into the engine so reads of its output
// get a chance to run between writes.
const writeChunk = 64 * 1024

// Manager owns at most one live engine. It reuses the engine while the
// viewport geometry is unchanged and drains it to the output before a
// replacement is spawned, so every byte of the old engine precedes any byte
// of the new one.
type Manager struct {
	spawner Spawner
	output  frame.Size
	bus     *events.Bus
	logger  *slog.Logger

	engine Engine
	outBuf []byte
}

// NewManager creates a manager producing frames of the output geometry.
// bus may be nil.
func NewManager(spawner Spawner, output frame.Size, bus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		spawner: spawner,
		output:  output,
		bus:     bus,
		logger:  logger,
		outBuf:  make([]byte, output.Bytes()),
	}
}

// Active reports whether an engine is live.
func (m *Manager) Active() bool {
	return m.engine != nil
}

// Prepare makes sure a live engine accepts input of the given geometry.
// A mismatching engine is drained into out before the new one is spawned.
func (m *Manager) Prepare(in frame.Size, out io.Writer) error {
	if m.engine != nil && m.engine.Input() == in {
		return nil
	}
	if err := m.Finish(out); err != nil {
		return err
	}

	engine, err := m.spawner.Spawn(in, m.output)
	if err != nil {
		return err
	}
	m.engine = engine

	metrics.ScalerSpawned()
	m.bus.Publish(events.ScalerSpawnedEvent{Input: in, Output: m.output, Engine: m.spawner.Name()})
	m.logger.Info("Scaler spawned", "engine", m.spawner.Name(), "input", in.String(), "output", m.output.String())
	return nil
}

// Finish drains the live engine, if any, into out.
func (m *Manager) Finish(out io.Writer) error {
	if m.engine == nil {
		return nil
	}
	engine := m.engine
	m.engine = nil

	flushed, err := engine.Drain(out)
	if err != nil {
		return fmt.Errorf("drain scaler %s: %w", engine.Input(), err)
	}

	metrics.ScalerDrained(flushed)
	m.bus.Publish(events.ScalerDrainedEvent{Input: engine.Input(), Flushed: flushed})
	m.logger.Info("Scaler drained", "input", engine.Input().String(), "flushed_bytes", flushed)
	return nil
}

// Transfer feeds one cropped frame to the engine and copies one full output
// frame to out. Writes run on a separate goroutine while this goroutine
// reads, so an engine whose output pipe fills up can never block its own
// input. Each segment read from the engine is written to out immediately.
func (m *Manager) Transfer(cropped []byte, out io.Writer) error {
	if m.engine == nil {
		return fmt.Errorf("scaler: transfer without a live engine")
	}
	engine := m.engine

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- feed(engine, cropped)
	}()

	want := len(m.outBuf)
	for got := 0; got < want; {
		n, err := engine.Read(m.outBuf[got:])
		if n > 0 {
			if _, werr := out.Write(m.outBuf[got : got+n]); werr != nil {
				m.abandon(engine, writeDone)
				return werr
			}
			got += n
		}
		if err != nil {
			if ferr := <-writeDone; ferr != nil {
				return ferr
			}
			return fmt.Errorf("read scaler output (%d of %d bytes): %v", got, want, err)
		}
	}

	return <-writeDone
}

// abandon releases an engine whose output can no longer be delivered. The
// engine is drained into io.Discard, which unblocks a pending feed before
// it is awaited.
func (m *Manager) abandon(engine Engine, writeDone <-chan error) {
	m.engine = nil
	if _, err := engine.Drain(io.Discard); err != nil {
		m.logger.Debug("Abandoned scaler drain failed", "input", engine.Input().String(), "error", err)
	}
	<-writeDone
}

// feed writes p to the engine in bounded chunks.
func feed(w io.Writer, p []byte) error {
	for len(p) > 0 {
		chunk := p
		if len(chunk) > writeChunk {
			chunk = chunk[:writeChunk]
		}
		n, err := w.Write(chunk)
		if err != nil {
			return fmt.Errorf("write scaler input: %w", err)
		}
		p = p[n:]
	}
	return nil
}
