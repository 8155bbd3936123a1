package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/zoomrelay/internal/logging"
)

// OutputHandler receives diagnostic lines (stderr) from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, gstreamer, etc.)
type LogParser func(line string) (level, msg string)

// ErrNotStarted is returned by I/O methods before Start succeeds.
var ErrNotStarted = errors.New("process: not started")

// Process is a subprocess used as a byte-stream filter: callers write to its
// stdin and read from its stdout, while stderr is parsed and logged.
//
// Stdout must be read to EOF before Wait; exec closes the pipe once the
// process has been reaped.
type Process struct {
	id            string
	command       string
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	stdout        io.ReadCloser
	logger        logging.Logger
	processLogger logging.Logger // logger for process stderr (nil = use logger)
	logParser     LogParser      // parses process stderr for log level (nil = no parsing)
	outputHandler OutputHandler
	stderrDone    chan struct{}

	mu        sync.Mutex
	state     State
	startedAt time.Time
	lastError error
}

// NewProcess creates a new, not yet started process.
func NewProcess(id, command string, logger logging.Logger) *Process {
	return &Process{
		id:      id,
		command: command,
		logger:  logger,
		state:   StateIdle,
	}
}

// GetCommand returns the command string.
func (p *Process) GetCommand() string {
	return p.command
}

// SetLogParser sets a custom logger and log parser for process stderr.
// The logger is used for process output (e.g., module="ffmpeg").
// The parser extracts log level from process-specific output formats.
func (p *Process) SetLogParser(logger logging.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetOutputHandler registers a handler that receives every stderr line.
func (p *Process) SetOutputHandler(handler OutputHandler) {
	p.outputHandler = handler
}

// Start parses the command, wires the pipes and starts the subprocess.
func (p *Process) Start() error {
	p.setState(StateStarting, nil)

	args, err := parseCommand(p.command)
	if err != nil {
		return p.fail(fmt.Errorf("parse command: %w", err))
	}
	if len(args) == 0 {
		return p.fail(fmt.Errorf("empty command"))
	}

	p.cmd = exec.Command(args[0], args[1:]...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if p.stdin, err = p.cmd.StdinPipe(); err != nil {
		return p.fail(fmt.Errorf("stdin pipe: %w", err))
	}
	if p.stdout, err = p.cmd.StdoutPipe(); err != nil {
		return p.fail(fmt.Errorf("stdout pipe: %w", err))
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return p.fail(fmt.Errorf("stderr pipe: %w", err))
	}

	if err := p.cmd.Start(); err != nil {
		return p.fail(fmt.Errorf("start %q: %w", args[0], err))
	}

	p.mu.Lock()
	p.startedAt = time.Now()
	p.mu.Unlock()
	p.setState(StateRunning, nil)
	p.logger.Info("Process started", "id", p.id, "pid", p.cmd.Process.Pid, "command", p.command)

	p.stderrDone = make(chan struct{})
	go func() {
		defer close(p.stderrDone)
		p.streamOutput(stderr, "stderr")
	}()

	return nil
}

// Write writes to the subprocess stdin.
func (p *Process) Write(b []byte) (int, error) {
	if p.stdin == nil {
		return 0, ErrNotStarted
	}
	return p.stdin.Write(b)
}

// Read reads from the subprocess stdout.
func (p *Process) Read(b []byte) (int, error) {
	if p.stdout == nil {
		return 0, ErrNotStarted
	}
	return p.stdout.Read(b)
}

// CloseInput closes stdin, signalling end of input to the subprocess.
func (p *Process) CloseInput() error {
	if p.stdin == nil {
		return ErrNotStarted
	}
	p.setState(StateStopping, nil)
	return p.stdin.Close()
}

// Wait waits for stderr to be consumed and the subprocess to exit.
// It returns the exit code; the error is non-nil only when the process
// could not be waited on, not for a non-zero exit status.
func (p *Process) Wait() (int, error) {
	if p.cmd == nil || p.cmd.Process == nil {
		return 1, ErrNotStarted
	}
	<-p.stderrDone

	waitErr := p.cmd.Wait()
	exitCode := exitCodeFromError(waitErr)

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		p.setState(StateError, waitErr)
		return exitCode, waitErr
	}

	p.setState(StateIdle, nil)
	p.logger.Info("Process exited", "id", p.id, "exit_code", exitCode)
	return exitCode, nil
}

// Info returns a snapshot of the process state.
func (p *Process) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := Info{
		ID:        p.id,
		State:     p.state,
		StartedAt: p.startedAt,
		LastError: p.lastError,
	}
	if p.cmd != nil && p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	return info
}

func (p *Process) setState(s State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
	if err != nil {
		p.lastError = err
	}
}

func (p *Process) fail(err error) error {
	p.setState(StateError, err)
	p.logger.Error("Failed to start process", "id", p.id, "error", err, "command", p.command)
	return err
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// streamOutput logs each line the subprocess writes to stderr.
// Uses the configured processLogger (or falls back to default logger)
// and the configured LogParser to extract levels.
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "panic", "fatal", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "verbose", "debug", "trace":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil {
		p.logger.Warn("Error reading output", "source", source, "error", err)
	}
}

// parseCommand parses a command string into arguments
// Handles quoted strings and basic escaping.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	command = strings.TrimSpace(command)
	runes := []rune(command)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++ // Skip the backslash
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	return args, nil
}
