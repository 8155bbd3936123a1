package ffmpeg

import "github.com/smazurov/zoomrelay/internal/frame"

// ScaleParams describes one ffmpeg rescale engine: raw RGB24 in on stdin,
// raw RGB24 out on stdout.
type ScaleParams struct {
	Binary   string     // ffmpeg executable, "ffmpeg" when empty
	Input    frame.Size // geometry written to stdin
	Output   frame.Size // geometry read from stdout
	Filter   string     // swscale flags: bicubic, lanczos, bilinear...
	LogLevel string     // ffmpeg -loglevel value, "warning" when empty
}
