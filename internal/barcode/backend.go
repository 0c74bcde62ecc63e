// Package barcode holds the detection model shared by every stage: raw
// detector records in their two host variants, the canonical Detection,
// code types, and normalization between them.
//
// It also provides a pluggable image decoder used by the command line tools.
// The default build has no decoder linked; enable the gozxing-backed decoder
// with the build tag `barcode_gozxing`:
//
//	go build -tags=barcode_gozxing ./...
package barcode

import (
	"context"
	"errors"
	"image"
	"strconv"

	"github.com/MeKo-Tech/codescan/internal/geometry"
)

// ErrNoBackend is returned by the default build's decoder.
var ErrNoBackend = errors.New("barcode: no decoder backend linked; build with -tags=barcode_gozxing or configure a backend")

// Options controls backend decoding behavior.
type Options struct {
	// Types constrains the symbologies to search. Empty searches all.
	Types []CodeType

	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// Multi enables multi-symbol detection in a single image.
	Multi bool
}

// Result is one code decoded from an image, in image pixels.
type Result struct {
	Type   CodeType
	Value  string
	Points []geometry.Point
}

// Raw converts the result into a pixel-coordinate raw detection so that it
// travels through the same normalization as detector host records.
// Backends report between two and many key points. Three points are QR finder
// patterns (bottom-left, top-left, top-right) and are completed to a
// parallelogram; more than four are reduced to their minimum-area rectangle.
// Anything still not a simple quadrilateral is widened to its bounding box.
func (r Result) Raw() PixelDetection {
	var corners []geometry.Point
	switch n := len(r.Points); {
	case n == CornerCount:
		corners = r.Points
	case n == 3:
		bl, tl, tr := r.Points[0], r.Points[1], r.Points[2]
		br := geometry.Point{X: tr.X + bl.X - tl.X, Y: tr.Y + bl.Y - tl.Y}
		corners = []geometry.Point{tl, tr, br, bl}
	case n > CornerCount:
		corners = geometry.MinimumAreaRectangle(r.Points)
	}
	if len(corners) != CornerCount || (len(r.Points) != CornerCount && !geometry.IsSimpleQuad(corners)) {
		corners = boxCorners(r.Points)
	}
	return PixelDetection{
		RawValue:     r.Value,
		Format:       r.Type.String(),
		CornerPoints: corners,
	}
}

func boxCorners(pts []geometry.Point) []geometry.Point {
	box := geometry.BoundingBox(pts)
	if box.Width == 0 {
		box.X--
		box.Width = 2
	}
	if box.Height == 0 {
		box.Y--
		box.Height = 2
	}
	return []geometry.Point{
		{X: box.X, Y: box.Y},
		{X: box.MaxX(), Y: box.Y},
		{X: box.MaxX(), Y: box.MaxY()},
		{X: box.X, Y: box.MaxY()},
	}
}

// Backend is a pluggable barcode decoder implementation.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// NewBackend returns the default backend implementation.
// The default build has no backend; enable specific backends via build tags.
func NewBackend() (Backend, error) { return newDefaultBackend() }

// DecodeFrame decodes img with be and returns the results as raw detections
// together with the frame they belong to.
func DecodeFrame(ctx context.Context, be Backend, img image.Image, opts Options) ([]RawDetection, geometry.Size, error) {
	b := img.Bounds()
	size := geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	results, err := be.Decode(ctx, img, opts)
	if err != nil {
		return nil, size, err
	}
	raws := make([]RawDetection, 0, len(results))
	for _, r := range results {
		raws = append(raws, r.Raw())
	}
	return raws, size, nil
}

// FormatName returns the pixel-host format string for a code type, either
// its canonical name or, when asNumber is set, its integer format code.
func FormatName(t CodeType, asNumber bool) string {
	if !asNumber {
		return t.String()
	}
	for code, ct := range formatCodes {
		if ct == t {
			return strconv.Itoa(code)
		}
	}
	return "0"
}
