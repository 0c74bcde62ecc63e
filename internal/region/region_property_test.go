package region

import (
	"testing"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/mapping"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genQuad() gopter.Gen {
	return gen.SliceOfN(8, gen.IntRange(0, 400)).Map(func(v []int) []geometry.Point {
		pts := make([]geometry.Point, 4)
		for i := range pts {
			pts[i] = geometry.Point{X: float64(v[2*i]), Y: float64(v[2*i+1])}
		}
		return pts
	})
}

// The region test is all-corners: a detection passes exactly when every
// mapped corner is inside, never when only some are. Changing this to an
// intersection or centroid test must break this property.
func TestFilter_AllCornersProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)
	m := newMapperForProps()

	properties.Property("accepted iff every corner is inside", prop.ForAll(
		func(pts []geometry.Point, x, y, w, h int) bool {
			roi := geometry.Rect{X: float64(x), Y: float64(y), Width: float64(w), Height: float64(h)}
			f := Filter{ROI: &roi, ScanEnabled: true, Mapper: m}
			d := barcode.Detection{CornerPoints: pts}

			inside := 0
			for _, p := range pts {
				if roi.Contains(p) {
					inside++
				}
			}
			return f.IsInside(d, identityFrame, identityLayout) == (inside == len(pts))
		},
		genQuad(),
		gen.IntRange(0, 300),
		gen.IntRange(0, 300),
		gen.IntRange(0, 200),
		gen.IntRange(0, 200),
	))

	properties.Property("disabled scanning rejects regardless of geometry", prop.ForAll(
		func(pts []geometry.Point) bool {
			roi := geometry.Rect{Width: 400, Height: 400}
			f := Filter{ROI: &roi, ScanEnabled: false, Mapper: m}
			return !f.IsInside(barcode.Detection{CornerPoints: pts}, identityFrame, identityLayout)
		},
		genQuad(),
	))

	properties.TestingRun(t)
}

func newMapperForProps() *mapping.Mapper {
	m, err := mapping.NewMapper(mapping.PortraitOnly, mapping.Cover)
	if err != nil {
		panic(err)
	}
	return m
}
