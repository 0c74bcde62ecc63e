package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/stretchr/testify/assert"
)

func TestCloneRGBA(t *testing.T) {
	src := solidImage(6, 4, color.White)
	dst := CloneRGBA(src)
	assert.Equal(t, src.Bounds(), dst.Bounds())
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, dst.RGBAAt(3, 2))
}

func TestToImageRect(t *testing.T) {
	r := ToImageRect(geometry.Rect{X: 1.4, Y: 2.6, Width: 10, Height: 5})
	assert.Equal(t, image.Rect(1, 3, 11, 8), r)
}

func TestDrawRect(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	DrawRect(dst, image.Rect(2, 2, 10, 10), HighlightColor, 1)
	assert.Equal(t, HighlightColor, dst.RGBAAt(2, 2))
	assert.Equal(t, HighlightColor, dst.RGBAAt(9, 5))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(5, 5))

	// Out of bounds rectangles are ignored.
	DrawRect(dst, image.Rect(50, 50, 60, 60), RegionColor, 2)
}

func TestDrawPolygon(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	quad := []geometry.Point{{X: 2, Y: 2}, {X: 12, Y: 2}, {X: 12, Y: 12}, {X: 2, Y: 12}}
	DrawPolygon(dst, quad, RegionColor, 1)
	for _, p := range []image.Point{{2, 2}, {7, 2}, {12, 7}, {7, 12}, {2, 7}} {
		assert.Equal(t, RegionColor, dst.RGBAAt(p.X, p.Y), "pixel %v", p)
	}
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(7, 7))
}

func TestDrawPolygon_ClipsAndIgnoresShortInput(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 5, 5))
	DrawPolygon(dst, []geometry.Point{{X: 1, Y: 1}}, HighlightColor, 1)
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(1, 1))

	DrawPolygon(dst, []geometry.Point{{X: -10, Y: 2}, {X: 20, Y: 2}}, HighlightColor, 3)
	assert.Equal(t, HighlightColor, dst.RGBAAt(0, 2))
	assert.Equal(t, HighlightColor, dst.RGBAAt(4, 3))
}
