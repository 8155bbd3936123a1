package relay

import (
	"fmt"
	"io"

	"github.com/smazurov/zoomrelay/internal/frame"
)

// Extractor reads one frame from a raster stream and keeps only the rows of
// a viewport. Margins are read into a scratch buffer and never accumulate,
// so at most one row of the frame is held besides the cropped output.
type Extractor struct {
	size    frame.Size
	scratch []byte
	cropped []byte
}

// NewExtractor creates an extractor for frames of the given size.
func NewExtractor(size frame.Size) *Extractor {
	return &Extractor{
		size:    size,
		scratch: make([]byte, 64*1024),
	}
}

// Extract reads exactly one frame from r and returns the w*h*3 bytes of
// view in row-major order. The returned slice is reused by the next call.
//
// Every region read, margins and kept rows alike, is passed to tap in read
// order when tap is non-nil; concatenated, the tapped bytes are the full
// input frame. A short read returns ErrEndOfInput. A viewport that does not
// fit the frame is rejected before anything is read.
func (e *Extractor) Extract(r io.Reader, view frame.Viewport, tap func([]byte)) ([]byte, error) {
	if !view.Within(e.size) {
		return nil, fmt.Errorf("viewport %s outside %s frame", view, e.size)
	}

	const bpp = frame.BytesPerPixel
	width := e.size.Width

	need := view.W * view.H * bpp
	if cap(e.cropped) < need {
		e.cropped = make([]byte, need)
	}
	cropped := e.cropped[:need]

	front := (view.X + view.Y*width) * bpp
	between := (width - view.W) * bpp
	back := e.size.Bytes() - front - need - between*(view.H-1)

	if err := e.skip(r, front, tap); err != nil {
		return nil, err
	}
	rowBytes := view.W * bpp
	for row := 0; row < view.H; row++ {
		line := cropped[row*rowBytes : (row+1)*rowBytes]
		if err := readFull(r, line); err != nil {
			return nil, err
		}
		if tap != nil {
			tap(line)
		}
		if row < view.H-1 {
			if err := e.skip(r, between, tap); err != nil {
				return nil, err
			}
		}
	}
	if err := e.skip(r, back, tap); err != nil {
		return nil, err
	}
	return cropped, nil
}

// skip reads and discards n bytes through the scratch buffer.
func (e *Extractor) skip(r io.Reader, n int, tap func([]byte)) error {
	for n > 0 {
		chunk := e.scratch
		if n < len(chunk) {
			chunk = chunk[:n]
		}
		if err := readFull(r, chunk); err != nil {
			return err
		}
		if tap != nil {
			tap(chunk)
		}
		n -= len(chunk)
	}
	return nil
}
