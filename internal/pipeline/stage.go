package pipeline

import (
	"log/slog"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/mapping"
	"github.com/MeKo-Tech/codescan/internal/region"
)

// stage is one step of the frame path. run is called on the frame path for
// every admitted frame: it must not block and its work must stay bounded by
// the number of detections in the frame.
type stage interface {
	name() string
	run(fc *frameContext) error
}

// frameContext carries one frame through the stages.
type frameContext struct {
	frame       barcode.Frame
	layout      geometry.Size
	scanEnabled bool
	mapper      *mapping.Mapper
	logger      *slog.Logger

	raws       []barcode.RawDetection
	detections []barcode.Detection

	resolved     bool
	transform    mapping.Transform
	transformErr error
}

// frameTransform resolves the frame-to-view transform at most once per frame,
// so an unsupported orientation is reported once no matter how many stages
// map points.
func (fc *frameContext) frameTransform() (*mapping.Transform, error) {
	if !fc.resolved {
		fc.resolved = true
		fc.transform, fc.transformErr = fc.mapper.ForFrame(fc.frame.Size(), fc.layout, fc.frame.Orientation)
	}
	if fc.transformErr != nil {
		return nil, fc.transformErr
	}
	return &fc.transform, nil
}

type normalizeStage struct{}

func (normalizeStage) name() string { return "normalize" }

func (normalizeStage) run(fc *frameContext) error {
	ds, err := barcode.NormalizeAll(fc.raws, fc.frame)
	if err != nil {
		return err
	}
	fc.detections = ds
	return nil
}

type typeFilterStage struct {
	allowed barcode.TypeSet
}

func (typeFilterStage) name() string { return "type_filter" }

func (s typeFilterStage) run(fc *frameContext) error {
	fc.detections = barcode.FilterTypes(fc.detections, s.allowed)
	return nil
}

type regionStage struct {
	roi *geometry.Rect
}

func (regionStage) name() string { return "region" }

func (s regionStage) run(fc *frameContext) error {
	f := region.Filter{ROI: s.roi, ScanEnabled: fc.scanEnabled, Mapper: fc.mapper}
	var t *mapping.Transform
	if f.NeedsTransform() && len(fc.detections) > 0 {
		var err error
		t, err = fc.frameTransform()
		if err != nil {
			fc.logger.Debug("Region filter rejects all detections", "reason", err)
		}
	}
	fc.detections = f.Apply(fc.detections, t)
	return nil
}

func buildStages(cfg Config) []stage {
	stages := []stage{normalizeStage{}}
	if len(cfg.CodeTypes) > 0 {
		stages = append(stages, typeFilterStage{allowed: barcode.NewTypeSet(cfg.CodeTypes...)})
	}
	return append(stages, regionStage{roi: cfg.RegionOfInterest})
}
