package barcode

import (
	"testing"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_RawFourPoints(t *testing.T) {
	pts := []geometry.Point{{X: 1, Y: 1}, {X: 9, Y: 1}, {X: 9, Y: 9}, {X: 1, Y: 9}}
	raw := Result{Type: TypeQR, Value: "v", Points: pts}.Raw()
	assert.Equal(t, pts, raw.CornerPoints)
	assert.Equal(t, "qr", raw.Format)
	assert.Equal(t, "v", raw.RawValue)
}

func TestResult_RawCompletesFinderPatterns(t *testing.T) {
	raw := Result{Type: TypeQR, Value: "v", Points: []geometry.Point{{X: 10, Y: 40}, {X: 10, Y: 10}, {X: 40, Y: 10}}}.Raw()
	assert.Equal(t, []geometry.Point{{X: 10, Y: 10}, {X: 40, Y: 10}, {X: 40, Y: 40}, {X: 10, Y: 40}}, raw.CornerPoints)

	d, err := Normalize(raw, Frame{Width: 100, Height: 100})
	require.NoError(t, err)
	assert.Equal(t, TypeQR, d.Type)
	assert.True(t, geometry.IsSimpleQuad(d.CornerPoints))
}

func TestResult_RawLinearCode(t *testing.T) {
	raw := Result{Type: TypeEAN13, Value: "v", Points: []geometry.Point{{X: 10, Y: 50}, {X: 90, Y: 50}}}.Raw()
	box := geometry.BoundingBox(raw.CornerPoints)
	assert.Equal(t, geometry.Rect{X: 10, Y: 49, Width: 80, Height: 2}, box)
	assert.True(t, geometry.IsSimpleQuad(raw.CornerPoints))
}

func TestResult_RawKeepsRotatedFinderPatterns(t *testing.T) {
	// Rotated 45 degrees: bottom-left, top-left, top-right.
	pts := []geometry.Point{{X: 20, Y: 40}, {X: 40, Y: 20}, {X: 60, Y: 40}}
	raw := Result{Type: TypeQR, Value: "v", Points: pts}.Raw()
	assert.Equal(t, []geometry.Point{{X: 40, Y: 20}, {X: 60, Y: 40}, {X: 40, Y: 60}, {X: 20, Y: 40}}, raw.CornerPoints)
}

func TestResult_RawCollinearFinderPatternsFallBackToBox(t *testing.T) {
	pts := []geometry.Point{{X: 10, Y: 10}, {X: 20, Y: 10}, {X: 30, Y: 10}}
	raw := Result{Type: TypeQR, Value: "v", Points: pts}.Raw()
	assert.Equal(t, geometry.Rect{X: 10, Y: 9, Width: 20, Height: 2}, geometry.BoundingBox(raw.CornerPoints))
}

func TestResult_RawManyPointsUsesMinimumRectangle(t *testing.T) {
	pts := []geometry.Point{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 10}, {X: 0, Y: 10}, {X: 5, Y: 5}}
	raw := Result{Type: TypeAztec, Value: "v", Points: pts}.Raw()
	require.Len(t, raw.CornerPoints, CornerCount)
	assert.True(t, geometry.IsSimpleQuad(raw.CornerPoints))
	box := geometry.BoundingBox(raw.CornerPoints)
	assert.InDelta(t, 20, box.Width, 1e-9)
	assert.InDelta(t, 10, box.Height, 1e-9)
}
