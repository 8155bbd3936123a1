package scaler

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/smazurov/zoomrelay/internal/ffmpeg"
	"github.com/smazurov/zoomrelay/internal/frame"
	"github.com/smazurov/zoomrelay/internal/logging"
	"github.com/smazurov/zoomrelay/internal/process"
)

// ProcessSpawner starts an external program per geometry. With an empty
// Template the ffmpeg scale command is built from Binary and Filter;
// otherwise Template is expanded with ffmpeg.ExpandTemplate.
type ProcessSpawner struct {
	Binary   string
	Filter   string
	Template string
	Logger   *slog.Logger
}

// Name implements Spawner.
func (s *ProcessSpawner) Name() string {
	if s.Template != "" {
		return "command"
	}
	return "ffmpeg"
}

// Command returns the command line used for the given geometry.
func (s *ProcessSpawner) Command(in, out frame.Size) string {
	if s.Template != "" {
		return ffmpeg.ExpandTemplate(s.Template, in, out)
	}
	return ffmpeg.BuildScaleCommand(&ffmpeg.ScaleParams{
		Binary: s.Binary,
		Input:  in,
		Output: out,
		Filter: s.Filter,
	})
}

// Spawn implements Spawner.
func (s *ProcessSpawner) Spawn(in, out frame.Size) (Engine, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.GetLogger("scaler")
	}

	proc := process.NewProcess("scaler-"+in.String(), s.Command(in, out), logger)
	proc.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
	tail := &stderrTail{}
	proc.SetOutputHandler(tail)
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("spawn scaler for %s: %w", in, err)
	}

	engine := &ProcessEngine{proc: proc, input: in, logger: logger, tail: tail}
	logger.Debug("Scaler process started", "pid", engine.PID(), "command", proc.GetCommand())
	return engine, nil
}

// stderrTail remembers the last diagnostic line of a subprocess.
type stderrTail struct {
	mu   sync.Mutex
	last string
}

func (t *stderrTail) HandleLine(_, line string) {
	t.mu.Lock()
	t.last = line
	t.mu.Unlock()
}

func (t *stderrTail) Last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// ProcessEngine is an Engine backed by a subprocess's stdin and stdout.
type ProcessEngine struct {
	proc   *process.Process
	input  frame.Size
	logger *slog.Logger
	tail   *stderrTail
}

// Write implements io.Writer.
func (e *ProcessEngine) Write(p []byte) (int, error) {
	return e.proc.Write(p)
}

// Read implements io.Reader.
func (e *ProcessEngine) Read(p []byte) (int, error) {
	return e.proc.Read(p)
}

// Input implements Engine.
func (e *ProcessEngine) Input() frame.Size {
	return e.input
}

// Drain closes stdin, forwards stdout until EOF and reaps the process.
// A non-zero exit status is logged, not returned.
func (e *ProcessEngine) Drain(dst io.Writer) (int64, error) {
	if err := e.proc.CloseInput(); err != nil {
		return 0, fmt.Errorf("close scaler input: %w", err)
	}

	n, err := io.Copy(dst, e.proc)
	if err != nil {
		return n, fmt.Errorf("flush scaler output: %w", err)
	}

	exitCode, err := e.proc.Wait()
	if err != nil {
		return n, fmt.Errorf("wait for scaler: %w", err)
	}
	if exitCode != 0 {
		e.logger.Warn("Scaler exited with non-zero status", "exit_code", exitCode, "input", e.input.String(), "last_output", e.tail.Last())
	}
	return n, nil
}

// PID returns the subprocess id.
func (e *ProcessEngine) PID() int {
	return e.proc.Info().PID
}
