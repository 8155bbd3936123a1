package scaler

import (
	"image"
	"io"
	"sync"

	"golang.org/x/image/draw"

	"github.com/smazurov/zoomrelay/internal/frame"
)

// BuiltinSpawner creates in-process engines that resample with x/image/draw.
// Kernel defaults to Catmull-Rom.
type BuiltinSpawner struct {
	Kernel draw.Interpolator
}

// Name implements Spawner.
func (s *BuiltinSpawner) Name() string { return "builtin" }

// Spawn implements Spawner.
func (s *BuiltinSpawner) Spawn(in, out frame.Size) (Engine, error) {
	kernel := s.Kernel
	if kernel == nil {
		kernel = draw.CatmullRom
	}
	return NewBuiltinEngine(in, out, kernel), nil
}

// KernelFor maps a filter name to an x/image/draw interpolator. Unknown
// names, including the ffmpeg default bicubic, map to Catmull-Rom.
func KernelFor(name string) draw.Interpolator {
	switch name {
	case "nearest", "neighbor", "point":
		return draw.NearestNeighbor
	case "fast_bilinear":
		return draw.ApproxBiLinear
	case "bilinear":
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

// BuiltinEngine rescales whole input frames as soon as they are complete and
// queues the result for Read. Partial trailing input is discarded on Drain.
type BuiltinEngine struct {
	in, out frame.Size
	kernel  draw.Interpolator

	pending []byte // input not yet forming a whole frame; writer-owned
	src     *image.RGBA
	dst     *image.RGBA

	mu     sync.Mutex
	cond   *sync.Cond
	ready  []byte
	closed bool
}

// NewBuiltinEngine creates an engine mapping in to out geometry.
func NewBuiltinEngine(in, out frame.Size, kernel draw.Interpolator) *BuiltinEngine {
	e := &BuiltinEngine{
		in:     in,
		out:    out,
		kernel: kernel,
		src:    image.NewRGBA(image.Rect(0, 0, in.Width, in.Height)),
		dst:    image.NewRGBA(image.Rect(0, 0, out.Width, out.Height)),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Input implements Engine.
func (e *BuiltinEngine) Input() frame.Size { return e.in }

// Write implements io.Writer.
func (e *BuiltinEngine) Write(p []byte) (int, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}

	e.pending = append(e.pending, p...)
	frameBytes := e.in.Bytes()
	for len(e.pending) >= frameBytes {
		scaled := e.scale(e.pending[:frameBytes])
		e.pending = e.pending[frameBytes:]

		e.mu.Lock()
		e.ready = append(e.ready, scaled...)
		e.cond.Broadcast()
		e.mu.Unlock()
	}
	if len(e.pending) == 0 {
		e.pending = nil
	}
	return len(p), nil
}

// Read implements io.Reader. It blocks until output is available and
// returns io.EOF once drained.
func (e *BuiltinEngine) Read(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for len(e.ready) == 0 && !e.closed {
		e.cond.Wait()
	}
	if len(e.ready) == 0 {
		return 0, io.EOF
	}
	n := copy(p, e.ready)
	e.ready = e.ready[n:]
	return n, nil
}

// Drain implements Engine.
func (e *BuiltinEngine) Drain(dst io.Writer) (int64, error) {
	e.mu.Lock()
	e.closed = true
	rest := e.ready
	e.ready = nil
	e.cond.Broadcast()
	e.mu.Unlock()

	e.pending = nil
	if len(rest) == 0 {
		return 0, nil
	}
	n, err := dst.Write(rest)
	return int64(n), err
}

// scale resamples one packed RGB24 frame and returns packed RGB24 output.
func (e *BuiltinEngine) scale(rgb []byte) []byte {
	unpackRGB(e.src, rgb)
	e.kernel.Scale(e.dst, e.dst.Bounds(), e.src, e.src.Bounds(), draw.Src, nil)
	return packRGB(e.dst)
}

func unpackRGB(img *image.RGBA, rgb []byte) {
	for i, j := 0, 0; i+2 < len(rgb); i, j = i+frame.BytesPerPixel, j+4 {
		img.Pix[j] = rgb[i]
		img.Pix[j+1] = rgb[i+1]
		img.Pix[j+2] = rgb[i+2]
		img.Pix[j+3] = 0xff
	}
}

func packRGB(img *image.RGBA) []byte {
	out := make([]byte, 0, len(img.Pix)/4*frame.BytesPerPixel)
	for j := 0; j+3 < len(img.Pix); j += 4 {
		out = append(out, img.Pix[j], img.Pix[j+1], img.Pix[j+2])
	}
	return out
}
