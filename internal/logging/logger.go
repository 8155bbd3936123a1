package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is a duck-typed interface satisfied by *slog.Logger.
// Use this interface instead of *slog.Logger to decouple from the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{} // default level
	isInitialized   bool
	mutex           sync.RWMutex
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Initialize sets up the logging system.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	globalLevel := levelOrDefault(config.Level, slog.LevelInfo)
	globalLevelVar.Set(globalLevel)

	// Loggers handed out earlier keep their handler and format; only the level follows.
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(config, module, globalLevel))
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// SetLevels applies new global and per-module levels to existing loggers
// without recreating handlers. The output format is left unchanged.
func SetLevels(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig.Level = config.Level
	globalConfig.Modules = config.Modules

	globalLevel := levelOrDefault(config.Level, slog.LevelInfo)
	globalLevelVar.Set(globalLevel)
	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(config, module, globalLevel))
	}
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if logger, exists := moduleLoggers[module]; exists {
		mutex.RUnlock()
		return logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	// Double-check in case another goroutine created it
	if logger, exists := moduleLoggers[module]; exists {
		return logger
	}

	// Create a LevelVar for this module so level can be changed at runtime
	levelVar := &slog.LevelVar{}

	format := "text"
	level := slog.LevelInfo
	if isInitialized {
		format = globalConfig.Format
		level = moduleLevel(globalConfig, module, levelOrDefault(globalConfig.Level, slog.LevelInfo))
	}
	levelVar.Set(level)

	logger := slog.New(createHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

func moduleLevel(config Config, module string, fallback slog.Level) slog.Level {
	if levelStr, exists := config.Modules[module]; exists {
		if parsed := parseLevel(levelStr); parsed != nil {
			return *parsed
		}
	}
	return fallback
}

func levelOrDefault(level string, fallback slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return fallback
}

// createHandler creates a slog handler with the specified format and level.
// Logs go to stderr and to the journal when available. Stdout carries video
// frames and is never written by the logger.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stderrHandler slog.Handler
	if format == "json" {
		stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderrHandler = slog.NewTextHandler(os.Stderr, opts)
	}

	var handlers []slog.Handler
	if isStderrAvailable() {
		handlers = append(handlers, stderrHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	switch len(handlers) {
	case 0:
		return stderrHandler // Fallback
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStderrAvailable checks if stderr is connected to a terminal, pipe, socket, or file.
func isStderrAvailable() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	// Available if terminal, pipe, socket, or regular file (not /dev/null which is ModeDevice)
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		l := slog.LevelDebug
		return &l
	case "info":
		l := slog.LevelInfo
		return &l
	case "warn", "warning":
		l := slog.LevelWarn
		return &l
	case "error":
		l := slog.LevelError
		return &l
	default:
		return nil
	}
}
