package barcode

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/MeKo-Tech/codescan/internal/geometry"
)

// cornerKeys is the order used when corners arrive as a keyed object.
var cornerKeys = []string{"topLeft", "topRight", "bottomRight", "bottomLeft"}

// ParseBackendResult converts the loosely typed value a detector host returns
// (typically decoded JSON: a []any of map[string]any) into raw detections.
//
// A value that is not a sequence fails with ErrMalformedBackendResult. An
// entry that matches neither variant fails with a *NormalizeError wrapping
// ErrUnsupportedDetectionFormat. A nil value is an empty result.
func ParseBackendResult(v any) ([]RawDetection, error) {
	if v == nil {
		return nil, nil
	}
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []map[string]any:
		items = make([]any, len(t))
		for i := range t {
			items[i] = t[i]
		}
	case []RawDetection:
		return t, nil
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(t, &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBackendResult, err)
		}
		return ParseBackendResult(decoded)
	default:
		return nil, fmt.Errorf("%w: expected a sequence, got %T", ErrMalformedBackendResult, v)
	}

	out := make([]RawDetection, 0, len(items))
	for i, item := range items {
		raw, err := parseEntry(item)
		if err != nil {
			return nil, &NormalizeError{Index: i, Err: err}
		}
		out = append(out, raw)
	}
	return out, nil
}

func parseEntry(item any) (RawDetection, error) {
	switch r := item.(type) {
	case RawDetection:
		return r, nil
	case map[string]any:
		if _, ok := r["payload"]; ok {
			return parseFractional(r)
		}
		if _, ok := r["rawValue"]; ok {
			return parsePixel(r)
		}
		return nil, fmt.Errorf("%w: record has neither payload nor rawValue", ErrUnsupportedDetectionFormat)
	default:
		return nil, fmt.Errorf("%w: record is %T", ErrUnsupportedDetectionFormat, item)
	}
}

func parseFractional(m map[string]any) (RawDetection, error) {
	payload, ok := m["payload"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: payload is not a string", ErrUnsupportedDetectionFormat)
	}
	symbology, _ := m["symbology"].(string)

	box, err := parseRect(m["boundingBox"])
	if err != nil {
		return nil, err
	}
	corners, err := parseCorners(m["corners"])
	if err != nil {
		return nil, err
	}
	return FractionalDetection{Payload: payload, Symbology: symbology, BoundingBox: box, Corners: corners}, nil
}

func parsePixel(m map[string]any) (RawDetection, error) {
	value, ok := m["rawValue"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: rawValue is not a string", ErrUnsupportedDetectionFormat)
	}
	var format string
	switch f := m["format"].(type) {
	case string:
		format = f
	case nil:
	default:
		n, ok := toFloat(f)
		if !ok {
			return nil, fmt.Errorf("%w: format is %T", ErrUnsupportedDetectionFormat, f)
		}
		format = strconv.Itoa(int(n))
	}
	corners, err := parseCorners(m["cornerPoints"])
	if err != nil {
		return nil, err
	}
	return PixelDetection{RawValue: value, Format: format, CornerPoints: corners}, nil
}

func parseRect(v any) (geometry.Rect, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return geometry.Rect{}, fmt.Errorf("%w: boundingBox missing", ErrUnsupportedDetectionFormat)
	}
	if origin, ok := m["origin"]; ok {
		o, err := parsePoint(origin)
		if err != nil {
			return geometry.Rect{}, err
		}
		size, ok := m["size"].(map[string]any)
		if !ok {
			return geometry.Rect{}, fmt.Errorf("%w: boundingBox size missing", ErrUnsupportedDetectionFormat)
		}
		w, okW := toFloat(size["width"])
		h, okH := toFloat(size["height"])
		if !okW || !okH {
			return geometry.Rect{}, fmt.Errorf("%w: boundingBox size is not numeric", ErrUnsupportedDetectionFormat)
		}
		return geometry.Rect{X: o.X, Y: o.Y, Width: w, Height: h}, nil
	}

	x, okX := toFloat(m["x"])
	y, okY := toFloat(m["y"])
	w, okW := toFloat(m["width"])
	h, okH := toFloat(m["height"])
	if !okX || !okY || !okW || !okH {
		return geometry.Rect{}, fmt.Errorf("%w: boundingBox is not numeric", ErrUnsupportedDetectionFormat)
	}
	return geometry.Rect{X: x, Y: y, Width: w, Height: h}, nil
}

func parseCorners(v any) ([]geometry.Point, error) {
	var items []any
	switch c := v.(type) {
	case []any:
		items = c
	case map[string]any:
		for _, k := range cornerKeys {
			p, ok := c[k]
			if !ok {
				return nil, fmt.Errorf("%w: corner %q missing", ErrUnsupportedDetectionFormat, k)
			}
			items = append(items, p)
		}
	default:
		return nil, fmt.Errorf("%w: corners missing", ErrUnsupportedDetectionFormat)
	}
	if len(items) != CornerCount {
		return nil, fmt.Errorf("%w: %d corners", ErrUnsupportedDetectionFormat, len(items))
	}

	pts := make([]geometry.Point, len(items))
	for i, item := range items {
		p, err := parsePoint(item)
		if err != nil {
			return nil, err
		}
		pts[i] = p
	}
	return pts, nil
}

func parsePoint(v any) (geometry.Point, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return geometry.Point{}, fmt.Errorf("%w: point is %T", ErrUnsupportedDetectionFormat, v)
	}
	x, okX := toFloat(m["x"])
	y, okY := toFloat(m["y"])
	if !okX || !okY {
		return geometry.Point{}, fmt.Errorf("%w: point is not numeric", ErrUnsupportedDetectionFormat)
	}
	return geometry.Point{X: x, Y: y}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
