// Package region decides whether a detection lies inside the configured
// region of interest, expressed in view pixels.
package region

import (
	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/mapping"
)

// Filter holds the region of interest and the scan toggle for one frame.
// A nil ROI accepts every detection while scanning is enabled.
type Filter struct {
	ROI         *geometry.Rect
	ScanEnabled bool
	Mapper      *mapping.Mapper
}

// IsInside maps the detection's corners into view space and reports whether
// all four lie inside the ROI. Partial overlap is rejected. With scanning
// disabled every detection is rejected; with an ROI but no known layout
// nothing can be placed, so every detection is rejected too.
func (f Filter) IsInside(d barcode.Detection, frame barcode.Frame, layout geometry.Size) bool {
	if !f.ScanEnabled {
		return false
	}
	if f.ROI == nil {
		return true
	}
	if f.Mapper == nil {
		return false
	}
	t, err := f.Mapper.ForFrame(frame.Size(), layout, frame.Orientation)
	if err != nil {
		return false
	}
	return f.Inside(d, t)
}

// Inside is IsInside with the frame transform already resolved.
func (f Filter) Inside(d barcode.Detection, t mapping.Transform) bool {
	if !f.ScanEnabled {
		return false
	}
	if f.ROI == nil {
		return true
	}
	return f.ROI.ContainsAll(t.MapAll(d.CornerPoints))
}

// NeedsTransform reports whether Apply will map any points.
func (f Filter) NeedsTransform() bool {
	return f.ScanEnabled && f.ROI != nil
}

// Apply returns the detections that pass, in their original order. t is
// only consulted when NeedsTransform is true; a nil t then rejects all.
func (f Filter) Apply(ds []barcode.Detection, t *mapping.Transform) []barcode.Detection {
	if !f.ScanEnabled {
		return nil
	}
	if f.ROI == nil {
		return ds
	}
	if t == nil {
		return nil
	}
	out := make([]barcode.Detection, 0, len(ds))
	for _, d := range ds {
		if f.Inside(d, *t) {
			out = append(out, d)
		}
	}
	return out
}
