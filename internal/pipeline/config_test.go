package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/gate"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, gate.Continuous, cfg.ScanMode)
	assert.Equal(t, mapping.Cover, cfg.ScaleMode)
	assert.Equal(t, mapping.Reflect, cfg.Platform)
	assert.True(t, cfg.ScanEnabled)
	assert.True(t, cfg.HighlightingEnabled)
	assert.Nil(t, cfg.RegionOfInterest)
	assert.Equal(t, 500*time.Millisecond, cfg.FrameInterval())
}

func TestConfig_FrameInterval(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{30, 33333333 * time.Nanosecond},
		{0.5, 2 * time.Second},
		{0.25, 4 * time.Second},
		{1e-12, maxFrameInterval},
		{math.SmallestNonzeroFloat64, maxFrameInterval},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.TargetFPS = tt.fps
		require.NoError(t, cfg.Validate())
		assert.Equal(t, tt.want, cfg.FrameInterval(), "fps %v", tt.fps)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero fps", func(c *Config) { c.TargetFPS = 0 }, ErrInvalidTargetFPS},
		{"negative fps", func(c *Config) { c.TargetFPS = -5 }, ErrInvalidTargetFPS},
		{"nan fps", func(c *Config) { c.TargetFPS = math.NaN() }, ErrInvalidTargetFPS},
		{"infinite fps", func(c *Config) { c.TargetFPS = math.Inf(1) }, ErrInvalidTargetFPS},
		{"bad scan mode", func(c *Config) { c.ScanMode = "twice" }, gate.ErrInvalidScanMode},
		{"bad scale mode", func(c *Config) { c.ScaleMode = "stretch" }, mapping.ErrInvalidScaleMode},
		{"bad platform", func(c *Config) { c.Platform = mapping.Platform(12) }, mapping.ErrUnknownPlatform},
		{"negative roi", func(c *Config) { c.RegionOfInterest = &geometry.Rect{Width: -1, Height: 5} }, ErrInvalidRegion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}

	cfg := DefaultConfig()
	cfg.EventBuffer = 0
	require.Error(t, cfg.Validate())
}

func TestBuilder(t *testing.T) {
	roi := &geometry.Rect{X: 10, Y: 20, Width: 30, Height: 40}
	b := NewBuilder().
		WithCodeTypes(barcode.TypeQR, barcode.TypeEAN13).
		WithRegionOfInterest(roi).
		WithScanMode(gate.Once).
		WithTargetFPS(10).
		WithScanEnabled(false).
		WithScaleMode(mapping.Contain).
		WithHighlighting(false).
		WithPlatform(mapping.PortraitOnly).
		WithEventBuffer(8)

	cfg := b.Config()
	assert.Equal(t, []barcode.CodeType{barcode.TypeQR, barcode.TypeEAN13}, cfg.CodeTypes)
	assert.Equal(t, *roi, *cfg.RegionOfInterest)
	assert.Equal(t, gate.Once, cfg.ScanMode)
	assert.Equal(t, 10.0, cfg.TargetFPS)
	assert.False(t, cfg.ScanEnabled)
	assert.Equal(t, mapping.Contain, cfg.ScaleMode)
	assert.False(t, cfg.HighlightingEnabled)
	assert.Equal(t, mapping.PortraitOnly, cfg.Platform)
	assert.Equal(t, 8, cfg.EventBuffer)

	roi.X = 999
	assert.Equal(t, 10.0, b.Config().RegionOfInterest.X, "builder keeps its own copy")

	b.WithEventBuffer(0).WithRegionOfInterest(nil)
	assert.Equal(t, 8, b.Config().EventBuffer)
	assert.Nil(t, b.Config().RegionOfInterest)
}

func TestBuilder_BuildRejectsInvalidConfig(t *testing.T) {
	_, err := NewBuilder().WithTargetFPS(0).Build()
	require.ErrorIs(t, err, ErrInvalidTargetFPS)
}
