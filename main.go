package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/zoomrelay/cmd"
	"github.com/smazurov/zoomrelay/internal/config"
	"github.com/smazurov/zoomrelay/internal/control"
	"github.com/smazurov/zoomrelay/internal/crop"
	"github.com/smazurov/zoomrelay/internal/events"
	"github.com/smazurov/zoomrelay/internal/frame"
	"github.com/smazurov/zoomrelay/internal/logging"
	"github.com/smazurov/zoomrelay/internal/metrics/exporters"
	"github.com/smazurov/zoomrelay/internal/relay"
	"github.com/smazurov/zoomrelay/internal/scaler"
	"github.com/smazurov/zoomrelay/internal/snapshot"
	"github.com/smazurov/zoomrelay/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"zoomrelay.toml"`

	// Frame settings
	Width  int `help:"Frame width in pixels" default:"1280" toml:"frame.width" env:"FRAME_WIDTH"`
	Height int `help:"Frame height in pixels" default:"720" toml:"frame.height" env:"FRAME_HEIGHT"`

	// Control server settings
	Port       int    `help:"Control port" short:"p" default:"20000" toml:"control.port" env:"CONTROL_PORT"`
	ListenHost string `help:"Control listen address" default:"127.0.0.1" toml:"control.host" env:"CONTROL_HOST"`

	// Scaler settings
	Engine        string `help:"Rescale engine (ffmpeg, builtin)" default:"ffmpeg" toml:"scaler.engine" env:"SCALER_ENGINE"`
	FfmpegPath    string `help:"FFmpeg binary" default:"ffmpeg" toml:"scaler.ffmpeg_path" env:"SCALER_FFMPEG_PATH"`
	ScalerCommand string `help:"Custom rescale command template ({in_w} {in_h} {out_w} {out_h})" default:"" toml:"scaler.command" env:"SCALER_COMMAND"`
	ScaleFilter   string `help:"Scale filter (bicubic, bilinear, lanczos, ...)" default:"bicubic" toml:"scaler.filter" env:"SCALER_FILTER"`

	// Metrics settings
	MetricsAddr string `help:"Prometheus listen address, empty to disable" default:"" toml:"metrics.addr" env:"METRICS_ADDR"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingRelay   string `help:"Relay loop logging level" default:"info" toml:"logging.relay" env:"LOGGING_RELAY"`
	LoggingControl string `help:"Control server logging level" default:"info" toml:"logging.control" env:"LOGGING_CONTROL"`
	LoggingScaler  string `help:"Scaler logging level" default:"info" toml:"logging.scaler" env:"LOGGING_SCALER"`
	LoggingFfmpeg  string `help:"FFmpeg stderr logging level" default:"info" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"relay":   opts.LoggingRelay,
				"control": opts.LoggingControl,
				"scaler":  opts.LoggingScaler,
				"ffmpeg":  opts.LoggingFfmpeg,
			},
		})

		hooks.OnStart(func() {
			os.Exit(run(opts))
		})
	})

	cli.Root().Use = "zoomrelay"
	cli.Root().Short = "Raw RGB24 video relay with remote-controlled zoom"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreateVersionCmd())
	cli.Root().AddCommand(cmd.CreateScalerCommandCmd())

	cli.Run()
}

// run wires the relay and blocks until it stops. It returns the exit code.
func run(opts *Options) int {
	logger := logging.GetLogger("main")

	size := frame.Size{Width: opts.Width, Height: opts.Height}
	if size.Width <= 0 || size.Height <= 0 {
		logger.Error("Invalid frame size", "width", opts.Width, "height", opts.Height)
		return 1
	}

	// Writes to a closed stdout must fail with EPIPE instead of killing the process.
	signal.Ignore(syscall.SIGPIPE)

	spawner, err := newSpawner(opts)
	if err != nil {
		logger.Error("Invalid scaler configuration", "error", err)
		return 1
	}

	bus := events.New()
	defer bus.Close()
	unsubscribe := logEvents(bus, logging.GetLogger("events"))
	defer unsubscribe()

	if opts.MetricsAddr != "" {
		go exporters.Serve(opts.MetricsAddr, logging.GetLogger("metrics"))
	}

	if _, statErr := os.Stat(opts.Config); statErr == nil {
		watcher, watchErr := config.WatchLogging(opts.Config, logging.GetLogger("config"))
		if watchErr != nil {
			logger.Warn("Config watcher unavailable", "path", opts.Config, "error", watchErr)
		} else {
			defer watcher.Stop()
		}
	}

	cropState := crop.NewState(size)
	snapshots := snapshot.NewRelay()

	server := control.NewServer(control.Options{
		Addr:      fmt.Sprintf("%s:%d", opts.ListenHost, opts.Port),
		Size:      size,
		Crop:      cropState,
		Snapshots: snapshots,
		Bus:       bus,
		Logger:    logging.GetLogger("control"),
	})
	if listenErr := server.Listen(); listenErr != nil {
		logger.Error("Failed to start control server", "error", listenErr)
		return 1
	}
	defer server.Close()
	go func() {
		if serveErr := server.Serve(); serveErr != nil {
			logger.Error("Control server stopped", "error", serveErr)
		}
	}()

	r := relay.New(relay.Options{
		Size:      size,
		Input:     os.Stdin,
		Output:    os.Stdout,
		Crop:      cropState,
		Snapshots: snapshots,
		Scaler:    scaler.NewManager(spawner, size, bus, logging.GetLogger("scaler")),
		Logger:    logging.GetLogger("relay"),
	})

	if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
		logger.Debug("sd_notify failed", "error", notifyErr)
	}
	logger.Info("zoomrelay started",
		"version", version.String(),
		"size", size.String(),
		"engine", spawner.Name(),
		"control", server.Addr().String())

	if runErr := r.Run(); runErr != nil {
		logger.Error("Relay failed", "error", runErr)
		return 1
	}
	return 0
}

func newSpawner(opts *Options) (scaler.Spawner, error) {
	switch opts.Engine {
	case "ffmpeg", "":
		return &scaler.ProcessSpawner{
			Binary:   opts.FfmpegPath,
			Filter:   opts.ScaleFilter,
			Template: opts.ScalerCommand,
			Logger:   logging.GetLogger("scaler"),
		}, nil
	case "builtin":
		return &scaler.BuiltinSpawner{Kernel: scaler.KernelFor(opts.ScaleFilter)}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", opts.Engine)
	}
}

// logEvents mirrors bus traffic at debug level.
func logEvents(bus *events.Bus, logger *slog.Logger) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.ViewportChangedEvent) {
			logger.Debug("viewport changed", "from", e.Previous.String(), "to", e.Current.String(), "remote", e.Remote)
		}),
		bus.Subscribe(func(e events.ScalerSpawnedEvent) {
			logger.Debug("scaler spawned", "engine", e.Engine, "input", e.Input.String(), "output", e.Output.String())
		}),
		bus.Subscribe(func(e events.ScalerDrainedEvent) {
			logger.Debug("scaler drained", "input", e.Input.String(), "flushed_bytes", e.Flushed)
		}),
		bus.Subscribe(func(e events.SnapshotServedEvent) {
			logger.Debug("snapshot served", "remote", e.Remote, "bytes", e.Bytes, "error", e.Err)
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
