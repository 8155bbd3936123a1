// Package metrics provides Prometheus metrics for the relay, scaler and control server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zoomrelay",
		Subsystem: "relay",
		Name:      "frames_total",
		Help:      "Frames written to the output, by relay mode",
	}, []string{"mode"})

	zoomed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zoomrelay",
		Subsystem: "relay",
		Name:      "zoomed",
		Help:      "1 while the relay is cropping and rescaling, 0 in passthrough",
	})

	viewportPixels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zoomrelay",
		Subsystem: "relay",
		Name:      "viewport_pixels",
		Help:      "Area of the viewport currently being relayed",
	})

	scalerSpawns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zoomrelay",
		Subsystem: "scaler",
		Name:      "spawns_total",
		Help:      "Rescale engines started",
	})

	scalerDrainedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zoomrelay",
		Subsystem: "scaler",
		Name:      "drained_bytes_total",
		Help:      "Bytes flushed to the output while draining retired engines",
	})

	controlCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zoomrelay",
		Subsystem: "control",
		Name:      "commands_total",
		Help:      "Control commands handled, by command and reply",
	}, []string{"command", "result"})

	snapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zoomrelay",
		Subsystem: "control",
		Name:      "snapshots_total",
		Help:      "get_image responses, by outcome",
	}, []string{"result"})
)

// FrameRelayed counts one output frame in the given mode ("passthrough" or "zoomed").
func FrameRelayed(mode string) {
	framesRelayed.WithLabelValues(mode).Inc()
}

// SetViewport records the mode and viewport area used for the current frame.
func SetViewport(isZoomed bool, pixels int) {
	if isZoomed {
		zoomed.Set(1)
	} else {
		zoomed.Set(0)
	}
	viewportPixels.Set(float64(pixels))
}

// ScalerSpawned counts a rescale engine start.
func ScalerSpawned() {
	scalerSpawns.Inc()
}

// ScalerDrained adds the bytes flushed from a retired engine.
func ScalerDrained(flushed int64) {
	scalerDrainedBytes.Add(float64(flushed))
}

// ControlCommand counts one handled control command.
func ControlCommand(command, result string) {
	controlCommands.WithLabelValues(command, result).Inc()
}

// SnapshotServed counts one finished get_image response.
func SnapshotServed(ok bool) {
	if ok {
		snapshots.WithLabelValues("ok").Inc()
		return
	}
	snapshots.WithLabelValues("error").Inc()
}
