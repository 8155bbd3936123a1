package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/zoomrelay/internal/logging"
)

type scalerSection struct {
	Engine string `toml:"engine"`
	Filter string `toml:"filter"`
}

type testConfig struct {
	Scaler scalerSection `toml:"scaler"`
}

func loadTestConfig(path string) (testConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testConfig{}, err
	}
	var cfg testConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func scalerTOML(engine, filter string) []byte {
	return fmt.Appendf(nil, "[scaler]\nengine = %q\nfilter = %q\n", engine, filter)
}

// startWatcher starts a watcher on a fresh file and stops it at cleanup.
func startWatcher(t *testing.T, debounce time.Duration, opts ...WatcherOption[testConfig]) (*Watcher[testConfig], string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zoomrelay.toml")
	if err := os.WriteFile(path, scalerTOML("ffmpeg", "bicubic"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts = append([]WatcherOption[testConfig]{WithDebounce[testConfig](debounce)}, opts...)
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})

	// Let the watcher settle before the first change.
	time.Sleep(100 * time.Millisecond)
	return w, path
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	received := make(chan testConfig, 1)
	w, path := startWatcher(t, 50*time.Millisecond)
	w.OnReload(func(cfg testConfig) { received <- cfg })

	if err := os.WriteFile(path, scalerTOML("builtin", "lanczos"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Scaler.Engine != "builtin" || cfg.Scaler.Filter != "lanczos" {
			t.Errorf("got %+v, want builtin/lanczos", cfg.Scaler)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}

func TestConfigWatcher_RenameReplace(t *testing.T) {
	received := make(chan testConfig, 1)
	w, path := startWatcher(t, 50*time.Millisecond)
	w.OnReload(func(cfg testConfig) { received <- cfg })

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, scalerTOML("builtin", "bilinear"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Scaler.Filter != "bilinear" {
			t.Errorf("filter = %q, want bilinear", cfg.Scaler.Filter)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestConfigWatcher_IgnoresSiblingFiles(t *testing.T) {
	var count atomic.Int32
	w, path := startWatcher(t, 50*time.Millisecond)
	w.OnReload(func(testConfig) { count.Add(1) })

	sibling := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(sibling, scalerTOML("builtin", "area"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("handler called %d times for an unrelated file", got)
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	var kept, removed atomic.Int32
	w, path := startWatcher(t, 50*time.Millisecond)
	w.OnReload(func(testConfig) { kept.Add(1) })
	unsub := w.OnReload(func(testConfig) { removed.Add(1) })
	unsub()

	if err := os.WriteFile(path, scalerTOML("builtin", "bicubic"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	if kept.Load() == 0 {
		t.Error("remaining handler was not called")
	}
	if removed.Load() != 0 {
		t.Error("unsubscribed handler was called")
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	errorReceived := make(chan error, 1)
	configReceived := make(chan testConfig, 1)
	w, path := startWatcher(t, 50*time.Millisecond, WithErrorHandler[testConfig](func(err error) {
		errorReceived <- err
	}))
	w.OnReload(func(cfg testConfig) { configReceived <- cfg })

	if err := os.WriteFile(path, []byte("[scaler\nengine ="), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errorReceived:
	case <-configReceived:
		t.Fatal("config handler should not be called on error")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	var count atomic.Int32
	var last atomic.Value
	w, path := startWatcher(t, 200*time.Millisecond)
	w.OnReload(func(cfg testConfig) {
		count.Add(1)
		last.Store(cfg.Scaler.Filter)
	})

	filters := []string{"fast_bilinear", "bilinear", "bicubic", "lanczos", "spline"}
	for _, f := range filters {
		if err := os.WriteFile(path, scalerTOML("ffmpeg", f), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("expected 1 debounced call, got %d", got)
	}
	if got := last.Load(); got != "spline" {
		t.Errorf("expected final filter spline, got %v", got)
	}
}

func TestConfigWatcher_Stop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zoomrelay.toml")
	if err := os.WriteFile(path, scalerTOML("ffmpeg", "bicubic"), 0o644); err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), WithDebounce[testConfig](50*time.Millisecond))
	w.OnReload(func(testConfig) { count.Add(1) })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, scalerTOML("builtin", "bicubic"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("expected 0 calls after stop, got %d", got)
	}
}

func TestWatchLoggingAppliesLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zoomrelay.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	logging.Initialize(logging.Config{Level: "info", Format: "text"})
	relayLogger := logging.GetLogger("relay")

	w, err := WatchLogging(path, newTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"info\"\nrelay = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if relayLogger.Enabled(t.Context(), slog.LevelDebug) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("relay logger never switched to debug")
}
