package mapping

import (
	"testing"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/orientation"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genMode() gopter.Gen {
	return gen.Bool().Map(func(cover bool) ScaleMode {
		if cover {
			return Cover
		}
		return Contain
	})
}

func TestScalePoint_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same source and target is identity for whole pixels", prop.ForAll(
		func(x, y, w, h int, mode ScaleMode) bool {
			size := geometry.Size{Width: float64(w), Height: float64(h)}
			p := geometry.Point{X: float64(x), Y: float64(y)}
			got, err := ScalePoint(p, size, size, mode)
			return err == nil && got == p
		},
		gen.IntRange(-2000, 2000),
		gen.IntRange(-2000, 2000),
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		genMode(),
	))

	properties.Property("centering offset lands on exactly one axis", prop.ForAll(
		func(sw, sh, tw, th int, mode ScaleMode) bool {
			source := geometry.Size{Width: float64(sw), Height: float64(sh)}
			target := geometry.Size{Width: float64(tw), Height: float64(th)}
			dx, dy, onY, err := CenteringOffset(source, target, mode)
			if err != nil {
				return false
			}
			if onY {
				return dx == 0
			}
			return dy == 0
		},
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		genMode(),
	))

	properties.Property("origin maps to the rounded centering offset", prop.ForAll(
		func(sw, sh, tw, th int, mode ScaleMode) bool {
			source := geometry.Size{Width: float64(sw), Height: float64(sh)}
			target := geometry.Size{Width: float64(tw), Height: float64(th)}
			dx, dy, _, err := CenteringOffset(source, target, mode)
			if err != nil {
				return false
			}
			got, err := ScalePoint(geometry.Point{}, source, target, mode)
			return err == nil && got == geometry.RoundPoint(geometry.Point{X: dx, Y: dy})
		},
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		genMode(),
	))

	properties.TestingRun(t)
}

func TestRotate_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("unsupported orientations never move the point", prop.ForAll(
		func(x, y, o int) bool {
			p := geometry.Point{X: float64(x), Y: float64(y)}
			got, err := Rotate(p, geometry.Size{Width: 500, Height: 700}, orientation.Orientation(o), PortraitOnly)
			if orientation.Orientation(o) == orientation.Portrait {
				return err == nil
			}
			return err != nil && got == p
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
		gen.IntRange(-3, 10),
	))

	properties.Property("reflect rules are involutions on their adjusted target", prop.ForAll(
		func(x, y int) bool {
			target := geometry.Size{Width: 640, Height: 480}
			p := geometry.Point{X: float64(x), Y: float64(y)}
			for _, o := range []orientation.Orientation{orientation.LandscapeLeft, orientation.LandscapeRight, orientation.PortraitUpsideDown} {
				once, err := Rotate(p, target, o, Reflect)
				if err != nil {
					return false
				}
				twice, err := Rotate(once, target, o, Reflect)
				if err != nil || twice != p {
					return false
				}
			}
			return true
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
	))

	properties.TestingRun(t)
}
