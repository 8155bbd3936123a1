// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stderr when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// Stdout is reserved for raw video frames and is never used for logs.
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"scaler":  "debug",  // Per-module overrides
//			"control": "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("relay")
//	logger.Info("Relay started", "size", size)
//
// Levels can be changed later without recreating loggers:
//
//	logging.SetLevels(logging.Config{Level: "debug"})
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
//	journalctl -t zoomrelay -f
//	journalctl -t zoomrelay MODULE=scaler
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "text"
//	scaler = "debug"   # any other key is a module level
//	control = "warn"
package logging
