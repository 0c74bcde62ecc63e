package barcode

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/orientation"
)

var (
	// ErrUnsupportedDetectionFormat is returned for raw detections that match
	// neither known variant. The frame carrying it is skipped.
	ErrUnsupportedDetectionFormat = errors.New("barcode: unsupported detection format")

	// ErrMalformedBackendResult is returned when a backend result is not a
	// sequence of detection records at all.
	ErrMalformedBackendResult = errors.New("barcode: malformed backend result")
)

// CornerCount is the number of corner points every detection carries.
const CornerCount = 4

// NormalizeError wraps a failure with the index of the raw detection that caused it.
type NormalizeError struct {
	Index int
	Err   error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("detection %d: %v", e.Index, e.Err)
}

func (e *NormalizeError) Unwrap() error {
	return e.Err
}

// Frame describes one sampled video frame in sensor pixels.
type Frame struct {
	Width       float64                 `json:"width" yaml:"width"`
	Height      float64                 `json:"height" yaml:"height"`
	Orientation orientation.Orientation `json:"orientation" yaml:"orientation"`
	Timestamp   time.Duration           `json:"timestamp" yaml:"timestamp"`
}

// Size returns the frame dimensions.
func (f Frame) Size() geometry.Size {
	return geometry.Size{Width: f.Width, Height: f.Height}
}

// RawDetection is one detection record as reported by a detector host.
// It is implemented by FractionalDetection and PixelDetection only.
type RawDetection interface {
	rawDetection()
}

// FractionalDetection is reported with coordinates expressed as fractions
// of the frame width and height.
type FractionalDetection struct {
	Payload     string
	Symbology   string
	BoundingBox geometry.Rect
	Corners     []geometry.Point
}

// PixelDetection is reported with corner points already in frame pixels.
// Format carries either a name or a decimal format code.
type PixelDetection struct {
	RawValue     string
	Format       string
	CornerPoints []geometry.Point
}

func (FractionalDetection) rawDetection() {}
func (PixelDetection) rawDetection()      {}

// Detection is the canonical record of one code in frame pixels.
type Detection struct {
	Value        string           `json:"value" yaml:"value"`
	Type         CodeType         `json:"type" yaml:"type"`
	BoundingBox  geometry.Rect    `json:"boundingBox" yaml:"bounding_box"`
	CornerPoints []geometry.Point `json:"cornerPoints" yaml:"corner_points"`
}

// Normalize converts a raw detection into a Detection in frame pixels.
// Corner order is preserved as supplied.
func Normalize(raw RawDetection, frame Frame) (Detection, error) {
	var d Detection
	switch r := raw.(type) {
	case FractionalDetection:
		if len(r.Corners) != CornerCount {
			return Detection{}, fmt.Errorf("%w: fractional detection has %d corners", ErrUnsupportedDetectionFormat, len(r.Corners))
		}
		d = Detection{
			Value: r.Payload,
			Type:  SymbologyType(r.Symbology),
			BoundingBox: geometry.Rect{
				X:      geometry.Round(r.BoundingBox.X * frame.Width),
				Y:      geometry.Round(r.BoundingBox.Y * frame.Height),
				Width:  geometry.Round(r.BoundingBox.Width * frame.Width),
				Height: geometry.Round(r.BoundingBox.Height * frame.Height),
			},
			CornerPoints: make([]geometry.Point, CornerCount),
		}
		for i, c := range r.Corners {
			d.CornerPoints[i] = geometry.RoundPoint(geometry.Scale(c, frame.Width, frame.Height))
		}
	case *FractionalDetection:
		if r == nil {
			return Detection{}, fmt.Errorf("%w: nil detection", ErrUnsupportedDetectionFormat)
		}
		return Normalize(*r, frame)
	case PixelDetection:
		if len(r.CornerPoints) != CornerCount {
			return Detection{}, fmt.Errorf("%w: pixel detection has %d corners", ErrUnsupportedDetectionFormat, len(r.CornerPoints))
		}
		corners := make([]geometry.Point, CornerCount)
		copy(corners, r.CornerPoints)
		d = Detection{
			Value:        r.RawValue,
			Type:         FormatType(r.Format),
			BoundingBox:  geometry.BoundingBox(corners),
			CornerPoints: corners,
		}
	case *PixelDetection:
		if r == nil {
			return Detection{}, fmt.Errorf("%w: nil detection", ErrUnsupportedDetectionFormat)
		}
		return Normalize(*r, frame)
	default:
		return Detection{}, fmt.Errorf("%w: %T", ErrUnsupportedDetectionFormat, raw)
	}

	if !geometry.IsSimpleQuad(d.CornerPoints) {
		slog.Debug("Detection corners do not form a simple polygon",
			"value", d.Value, "corners", d.CornerPoints)
	}
	return d, nil
}

// NormalizeAll normalizes every raw detection of a frame. The first failure
// aborts with a *NormalizeError naming the offending index.
func NormalizeAll(raws []RawDetection, frame Frame) ([]Detection, error) {
	out := make([]Detection, 0, len(raws))
	for i, raw := range raws {
		d, err := Normalize(raw, frame)
		if err != nil {
			return nil, &NormalizeError{Index: i, Err: err}
		}
		out = append(out, d)
	}
	return out, nil
}

// Values returns the detection values in order.
func Values(ds []Detection) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Value
	}
	return out
}

// FilterTypes drops detections whose type the set does not allow.
func FilterTypes(ds []Detection, allowed TypeSet) []Detection {
	if len(allowed) == 0 {
		return ds
	}
	out := ds[:0:0]
	for _, d := range ds {
		if allowed.Allows(d.Type) {
			out = append(out, d)
		}
	}
	return out
}
