package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/zoomrelay/internal/frame"
)

// DefaultFilter is the swscale kernel used when none is configured.
const DefaultFilter = "bicubic"

// BuildScaleCommand builds an ffmpeg command that rescales a raw RGB24 byte
// stream from p.Input to p.Output geometry.
func BuildScaleCommand(p *ScaleParams) string {
	var cmd strings.Builder

	binary := p.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	if strings.ContainsAny(binary, " \t") {
		binary = strconv.Quote(binary)
	}
	cmd.WriteString(binary)

	logLevel := p.LogLevel
	if logLevel == "" {
		logLevel = "warning"
	}
	// level+ prefixes every line with [level] so ParseLogLevel can map it
	cmd.WriteString(" -hide_banner -loglevel level+" + logLevel)

	// No probing or input buffering: each raw frame is decoded as soon as it is complete
	cmd.WriteString(" -probesize 32 -analyzeduration 0 -fflags nobuffer")
	cmd.WriteString(" -f rawvideo -pix_fmt rgb24")
	cmd.WriteString(" -video_size " + p.Input.String())
	cmd.WriteString(" -i pipe:0")

	filter := p.Filter
	if filter == "" {
		filter = DefaultFilter
	}
	cmd.WriteString(fmt.Sprintf(" -vf scale=%d:%d:flags=%s", p.Output.Width, p.Output.Height, filter))

	// Flush every packet so a complete output frame never sits in ffmpeg's write buffer
	cmd.WriteString(" -flush_packets 1")
	cmd.WriteString(" -f rawvideo -pix_fmt rgb24 pipe:1")

	return cmd.String()
}

// ExpandTemplate substitutes geometry placeholders in a user supplied engine
// command. Supported placeholders: {in_w} {in_h} {in_size} {out_w} {out_h} {out_size}.
func ExpandTemplate(tmpl string, in, out frame.Size) string {
	r := strings.NewReplacer(
		"{in_w}", strconv.Itoa(in.Width),
		"{in_h}", strconv.Itoa(in.Height),
		"{in_size}", in.String(),
		"{out_w}", strconv.Itoa(out.Width),
		"{out_h}", strconv.Itoa(out.Height),
		"{out_size}", out.String(),
	)
	return r.Replace(tmpl)
}
