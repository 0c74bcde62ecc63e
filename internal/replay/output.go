package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Write renders reports in the given format: "text" (default), "json" or "yaml".
func Write(w io.Writer, format string, reports ...*Report) error {
	switch strings.ToLower(format) {
	case "", "text":
		for _, r := range reports {
			if err := WriteText(w, r); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(reports)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteText prints a human-readable summary of one report.
func WriteText(w io.Writer, r *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s (session %s)\n", r.Name, r.SessionID)
	for _, f := range r.Frames {
		fmt.Fprintf(&b, "step %-3d %-10s", f.Step, f.Outcome)
		if len(f.Values) > 0 {
			fmt.Fprintf(&b, " values=%s", strings.Join(f.Values, ","))
		}
		if f.Emitted {
			b.WriteString(" emitted")
		}
		if f.Cleared {
			b.WriteString(" cleared")
		}
		if f.Error != "" {
			fmt.Fprintf(&b, " error=%q", f.Error)
		}
		b.WriteByte('\n')
		for _, h := range f.Highlights {
			bb := h.BoundingBox
			fmt.Fprintf(&b, "         highlight %s [%g,%g %gx%g]\n", h.Key, bb.X, bb.Y, bb.Width, bb.Height)
		}
	}
	for _, ev := range r.Events {
		switch ev.Type {
		case "scanned":
			fmt.Fprintf(&b, "event    step %d scanned %s\n", ev.Step, strings.Join(ev.Values, ","))
		case "cleared":
			fmt.Fprintf(&b, "event    step %d cleared\n", ev.Step)
		}
	}
	failures := r.Failures()
	if len(failures) == 0 {
		b.WriteString("PASS\n")
	} else {
		for _, f := range failures {
			fmt.Fprintf(&b, "FAIL %s\n", f)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
