// Package frame describes raw RGB24 raster geometry and viewports inside it.
package frame

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BytesPerPixel is the size of one interleaved 8-bit RGB pixel.
const BytesPerPixel = 3

// Viewport parse errors.
var (
	ErrSyntax   = errors.New("frame: incorrect viewport syntax")
	ErrOutsideH = errors.New("frame: viewport exceeds frame width")
	ErrOutsideV = errors.New("frame: viewport exceeds frame height")
)

// Size is a raster geometry in pixels.
type Size struct {
	Width  int
	Height int
}

// Bytes returns the size of one frame at this geometry.
func (s Size) Bytes() int {
	return s.Width * s.Height * BytesPerPixel
}

// String formats the size as WxH.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses a WxH string.
func ParseSize(v string) (Size, error) {
	parts := strings.Split(v, "x")
	if len(parts) != 2 {
		return Size{}, fmt.Errorf("invalid size %q", v)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil || w <= 0 {
		return Size{}, fmt.Errorf("invalid width in %q", v)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil || h <= 0 {
		return Size{}, fmt.Errorf("invalid height in %q", v)
	}
	return Size{Width: w, Height: h}, nil
}

// Viewport is a rectangle inside a frame.
type Viewport struct {
	X int
	Y int
	W int
	H int
}

// Full returns the viewport covering the whole frame.
func Full(s Size) Viewport {
	return Viewport{W: s.Width, H: s.Height}
}

// Size returns the viewport dimensions.
func (v Viewport) Size() Size {
	return Size{Width: v.W, Height: v.H}
}

// String formats the viewport the way zoom_to accepts it.
func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", v.W, v.H, v.X, v.Y)
}

// Within reports whether v is non-empty and lies entirely inside s.
func (v Viewport) Within(s Size) bool {
	return v.W > 0 && v.H > 0 && v.X >= 0 && v.Y >= 0 &&
		v.X+v.W <= s.Width && v.Y+v.H <= s.Height
}

// ParseViewport parses WxH+X+Y and checks it against the frame size.
// Components are unsigned 16-bit integers.
func ParseViewport(arg string, s Size) (Viewport, error) {
	params := strings.Split(arg, "+")
	dims := strings.Split(params[0], "x")
	if len(dims) != 2 || len(params) != 3 {
		return Viewport{}, ErrSyntax
	}

	var nums [4]int
	for i, field := range []string{dims[0], dims[1], params[1], params[2]} {
		n, err := strconv.ParseUint(field, 10, 16)
		if err != nil {
			return Viewport{}, ErrSyntax
		}
		nums[i] = int(n)
	}

	v := Viewport{W: nums[0], H: nums[1], X: nums[2], Y: nums[3]}
	if v.W == 0 || v.H == 0 {
		return Viewport{}, ErrSyntax
	}
	if v.W+v.X > s.Width {
		return Viewport{}, ErrOutsideH
	}
	if v.H+v.Y > s.Height {
		return Viewport{}, ErrOutsideV
	}
	return v, nil
}

// Mode is the per-frame relay decision derived from one viewport snapshot.
type Mode struct {
	Zoomed bool
	View   Viewport
}

// ModeFor returns Passthrough when v covers the whole frame, Zoomed otherwise.
func ModeFor(v Viewport, s Size) Mode {
	if v == Full(s) {
		return Mode{}
	}
	return Mode{Zoomed: true, View: v}
}

// String returns "passthrough" or "zoomed".
func (m Mode) String() string {
	if m.Zoomed {
		return "zoomed"
	}
	return "passthrough"
}
