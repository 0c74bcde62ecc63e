package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/highlight"
	"github.com/MeKo-Tech/codescan/internal/mapping"
	"github.com/MeKo-Tech/codescan/internal/orientation"
	"github.com/MeKo-Tech/codescan/internal/pipeline"
	"github.com/MeKo-Tech/codescan/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image [file|dir...]",
	Short: "Decode barcodes in still images",
	Long: `Decode barcodes in still images and run each image through a scanner
session as a single frame: detections are normalized and filtered by code
type and region of interest. With --layout, detections are also projected
into view space as they would be highlighted on screen.

The decoder backend is selected at build time (-tags=barcode_gozxing).

Examples:
  codescan image shelf.jpg
  codescan image *.png --format json --code-types qr
  codescan image frame.jpg --layout 1080x1920 --orientation portrait --region 0,0,1080,960
  codescan image frame.jpg --overlay-dir overlays/
  codescan image photos/ -r --include '*.jpg'`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindScannerFlags(cmd, args); err != nil {
			return err
		}
		return bindFlags(cmd.Flags(), append(outputBindings, imageBindings...))
	},
	RunE: runImage,
}

var imageBindings = []flagBinding{
	{"decode.workers", "workers"},
	{"decode.try_harder", "try-harder"},
	{"decode.multi", "multi"},
	{"decode.max_side", "max-side"},
}

// codeResult is one decoded code. Corners and box are in original image
// pixels; Highlight is in view pixels.
type codeResult struct {
	Value       string               `json:"value" yaml:"value"`
	Type        barcode.CodeType     `json:"type" yaml:"type"`
	Corners     []geometry.Point     `json:"corners" yaml:"corners"`
	BoundingBox geometry.Rect        `json:"bounding_box" yaml:"bounding_box"`
	Highlight   *highlight.Highlight `json:"highlight,omitempty" yaml:"highlight,omitempty"`
}

type imageResult struct {
	File        string        `json:"file" yaml:"file"`
	Format      string        `json:"format,omitempty" yaml:"format,omitempty"`
	Width       int           `json:"width" yaml:"width"`
	Height      int           `json:"height" yaml:"height"`
	Orientation string        `json:"orientation" yaml:"orientation"`
	Codes       []codeResult  `json:"codes" yaml:"codes"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration_ns"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
	source      image.Image   `json:"-" yaml:"-"`
	scale       float64       `json:"-" yaml:"-"`
}

type imageOptions struct {
	layout      geometry.Size
	orientation orientation.Orientation
	overlayDir  string
	progress    bool
	discover    utils.DiscoverOptions
}

func parseImageOptions(cmd *cobra.Command) (imageOptions, error) {
	var opts imageOptions
	if s, _ := cmd.Flags().GetString("layout"); s != "" {
		layout, err := config.ParseLayout(s)
		if err != nil {
			return opts, err
		}
		opts.layout = layout
	}
	s, _ := cmd.Flags().GetString("orientation")
	o, err := orientation.Parse(s)
	if err != nil {
		return opts, err
	}
	opts.orientation = o
	opts.overlayDir, _ = cmd.Flags().GetString("overlay-dir")
	opts.progress, _ = cmd.Flags().GetBool("progress")
	opts.discover.Recursive, _ = cmd.Flags().GetBool("recursive")
	opts.discover.Include, _ = cmd.Flags().GetStringSlice("include")
	opts.discover.Exclude, _ = cmd.Flags().GetStringSlice("exclude")
	return opts, nil
}

func runImage(cmd *cobra.Command, args []string) error {
	cfg, err := scannerConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := parseImageOptions(cmd)
	if err != nil {
		return err
	}
	paths, err := utils.DiscoverImages(args, opts.discover)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no images found")
	}
	be, err := barcode.NewBackend()
	if err != nil {
		return err
	}

	results, err := decodeImages(commandContext(cmd), cmd, cfg, be, opts, paths)
	if err != nil {
		return err
	}

	if opts.overlayDir != "" {
		if err := writeOverlays(results, opts.overlayDir); err != nil {
			return err
		}
	}

	w, closeOut, err := openOutput(cmd, cfg.Output.File)
	if err != nil {
		return err
	}
	defer closeOut()
	if err := writeImageResults(w, cfg.Output.Format, results); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(results))
	}
	return nil
}

func decodeImages(ctx context.Context, cmd *cobra.Command, cfg *config.Config, be barcode.Backend,
	opts imageOptions, paths []string,
) ([]*imageResult, error) {
	pcfg, err := cfg.ToPipelineConfig()
	if err != nil {
		return nil, err
	}

	results := make([]*imageResult, len(paths))
	var batch []image.Image
	var pending []*imageResult
	for i, loaded := range utils.BatchLoadImages(paths) {
		r := &imageResult{File: loaded.Path, Orientation: opts.orientation.String(), Codes: []codeResult{}}
		results[i] = r
		if loaded.Err != nil {
			r.Error = loaded.Err.Error()
			continue
		}
		r.source = loaded.Img
		r.Format, r.Width, r.Height = loaded.Meta.Format, loaded.Meta.Width, loaded.Meta.Height
		if err := utils.ValidateImageConstraints(loaded.Img, utils.DefaultImageConstraints()); err != nil {
			r.Error = err.Error()
			continue
		}
		fitted, scale, err := utils.FitImage(loaded.Img, cfg.Decode.MaxSide)
		if err != nil {
			r.Error = err.Error()
			continue
		}
		r.scale = scale
		batch = append(batch, fitted)
		pending = append(pending, r)
	}
	if len(batch) == 0 {
		return results, nil
	}

	var progress pipeline.ProgressCallback = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug)
	if opts.progress {
		progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "decode ")
	}
	pc, err := cfg.ToParallelConfig(progress)
	if err != nil {
		return nil, err
	}
	decoded, err := pipeline.DecodeImages(ctx, be, batch, pc)
	if err != nil {
		return nil, err
	}

	var mapper *mapping.Mapper
	if opts.layout.Known() && pcfg.HighlightingEnabled {
		if mapper, err = mapping.NewMapper(pcfg.Platform, pcfg.ScaleMode); err != nil {
			return nil, err
		}
	}
	for j, d := range decoded {
		r := pending[j]
		if d.Err != nil {
			r.Error = d.Err.Error()
			continue
		}
		if err := scanFrame(ctx, pcfg, opts, mapper, d, r); err != nil {
			r.Error = err.Error()
		}
	}
	return results, nil
}

// scanFrame runs one decoded image through its own session as a single
// frame. The gate is irrelevant for stills; the frame result carries the
// filtered detections.
func scanFrame(ctx context.Context, pcfg pipeline.Config, opts imageOptions, mapper *mapping.Mapper,
	d pipeline.DecodedImage, r *imageResult,
) error {
	session, err := pipeline.NewBuilder().WithConfig(pcfg).WithLayout(opts.layout).Build()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	frame := barcode.Frame{Width: d.Size.Width, Height: d.Size.Height, Orientation: opts.orientation}
	res, err := session.ProcessFrame(ctx, frame, d.Raws)
	r.Duration = res.Duration
	if err != nil {
		return err
	}

	var hs []highlight.Highlight
	if mapper != nil {
		t, err := mapper.ForFrame(d.Size, opts.layout, opts.orientation)
		if err != nil {
			return err
		}
		hs = highlight.Map(res.Detections, t)
	}
	for i, det := range res.Detections {
		corners := make([]geometry.Point, len(det.CornerPoints))
		for k, p := range det.CornerPoints {
			corners[k] = geometry.RoundPoint(geometry.Scale(p, r.scale, r.scale))
		}
		c := codeResult{
			Value:       det.Value,
			Type:        det.Type,
			Corners:     corners,
			BoundingBox: geometry.BoundingBox(corners),
		}
		if hs != nil {
			c.Highlight = &hs[i]
		}
		r.Codes = append(r.Codes, c)
	}
	return nil
}

func writeOverlays(results []*imageResult, dir string) error {
	for _, r := range results {
		if r.source == nil || r.Error != "" {
			continue
		}
		canvas := utils.CloneRGBA(r.source)
		for _, c := range r.Codes {
			utils.DrawRect(canvas, utils.ToImageRect(c.BoundingBox), utils.RegionColor, 1)
			utils.DrawPolygon(canvas, c.Corners, utils.HighlightColor, 3)
		}
		base := strings.TrimSuffix(filepath.Base(r.File), filepath.Ext(r.File))
		path := filepath.Join(dir, base+"_overlay.png")
		if err := utils.SaveImage(path, canvas); err != nil {
			return err
		}
		slog.Debug("Wrote overlay", "file", path)
	}
	return nil
}

func writeImageResults(w io.Writer, format string, results []*imageResult) error {
	switch strings.ToLower(format) {
	case "", "text":
		var b strings.Builder
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintf(&b, "%s: error: %s\n", r.File, r.Error)
				continue
			}
			fmt.Fprintf(&b, "%s (%dx%d %s): %d code(s)\n", r.File, r.Width, r.Height, r.Format, len(r.Codes))
			for _, c := range r.Codes {
				bb := c.BoundingBox
				fmt.Fprintf(&b, "  %-12s %s  box=[%g,%g %gx%g]", c.Type, c.Value, bb.X, bb.Y, bb.Width, bb.Height)
				if c.Highlight != nil {
					vb := c.Highlight.BoundingBox
					fmt.Fprintf(&b, "  view=[%g,%g %gx%g]", vb.X, vb.Y, vb.Width, vb.Height)
				}
				b.WriteByte('\n')
			}
		}
		_, err := io.WriteString(w, b.String())
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(results)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func init() {
	rootCmd.AddCommand(imageCmd)
	addScannerFlags(imageCmd)
	imageCmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml)")
	imageCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	imageCmd.Flags().String("layout", "", "view size WIDTHxHEIGHT for highlight projection, e.g. 1080x1920")
	imageCmd.Flags().String("orientation", "portrait",
		"device orientation: portrait, portrait-upside-down, landscape-left, landscape-right")
	imageCmd.Flags().String("overlay-dir", "", "directory to write overlay images (drawn corners)")
	imageCmd.Flags().Int("workers", 0, "decode workers (0 = number of CPUs)")
	imageCmd.Flags().Bool("try-harder", false, "slower, more exhaustive decoding")
	imageCmd.Flags().Bool("multi", true, "decode several codes per image")
	imageCmd.Flags().Int("max-side", 0, "downscale images whose longer side exceeds this (0 = off)")
	imageCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	imageCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories of directory arguments")
	imageCmd.Flags().StringSlice("include", nil, "only files whose name matches these patterns, e.g. '*.png'")
	imageCmd.Flags().StringSlice("exclude", nil, "skip files whose name matches these patterns")
}
