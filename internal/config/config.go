package config

import (
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/codescan/internal/barcode"
	"github.com/MeKo-Tech/codescan/internal/gate"
	"github.com/MeKo-Tech/codescan/internal/geometry"
	"github.com/MeKo-Tech/codescan/internal/mapping"
	"github.com/MeKo-Tech/codescan/internal/pipeline"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Scanner:  defaultScannerConfig(),
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			ReadTimeoutSec:  60,
			MaxMessageKB:    512,
			ShutdownTimeout: 10,
			// Unlimited by default
			SessionsPerMinute: 0,
			SessionsPerHour:   0,
		},
		Decode: DecodeConfig{
			Workers:   runtime.NumCPU(),
			TryHarder: false,
			Multi:     true,
			MaxSide:   0,
		},
	}
}

// defaultScannerConfig returns the session defaults of the pipeline in file form.
func defaultScannerConfig() ScannerConfig {
	cfg := pipeline.DefaultConfig()
	return ScannerConfig{
		CodeTypes:           []string{},
		ScanMode:            string(cfg.ScanMode),
		TargetFPS:           cfg.TargetFPS,
		ScanEnabled:         cfg.ScanEnabled,
		ScaleMode:           string(cfg.ScaleMode),
		HighlightingEnabled: cfg.HighlightingEnabled,
		Platform:            cfg.Platform.String(),
		EventBuffer:         cfg.EventBuffer,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	// Validate output format
	validFormats := []string{"text", "json", "yaml"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if _, err := c.ToPipelineConfig(); err != nil {
		return err
	}

	// Validate positive integers
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeoutSec <= 0 {
		return fmt.Errorf("invalid server.read_timeout_sec: %d (must be positive)", c.Server.ReadTimeoutSec)
	}
	if c.Server.MaxMessageKB <= 0 {
		return fmt.Errorf("invalid server.max_message_kb: %d (must be positive)", c.Server.MaxMessageKB)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid server.shutdown_timeout: %d (must not be negative)", c.Server.ShutdownTimeout)
	}
	if c.Server.SessionsPerMinute < 0 || c.Server.SessionsPerHour < 0 {
		return fmt.Errorf("invalid server session limits: %d/min, %d/h (must not be negative)", c.Server.SessionsPerMinute, c.Server.SessionsPerHour)
	}
	if c.Decode.Workers < 0 {
		return fmt.Errorf("invalid decode.workers: %d (must not be negative)", c.Decode.Workers)
	}
	if c.Decode.MaxSide < 0 {
		return fmt.Errorf("invalid decode.max_side: %d (must not be negative)", c.Decode.MaxSide)
	}

	return nil
}

// ToPipelineConfig converts the scanner section to the session configuration
// and validates it.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	return c.Scanner.ToPipelineConfig()
}

// ToPipelineConfig converts and validates the scanner settings.
func (s ScannerConfig) ToPipelineConfig() (pipeline.Config, error) {
	out := pipeline.DefaultConfig()

	types, err := barcode.ParseCodeTypes(s.CodeTypes)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid scanner.code_types: %w (known: %s)", err, strings.Join(barcode.KnownCodeTypes(), ", "))
	}
	out.CodeTypes = types

	if out.ScanMode, err = gate.ParseMode(s.ScanMode); err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid scanner.scan_mode: %w", err)
	}
	if out.ScaleMode, err = mapping.ParseScaleMode(s.ScaleMode); err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid scanner.scale_mode: %w", err)
	}
	if out.Platform, err = mapping.ParsePlatform(s.Platform); err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid scanner.platform: %w", err)
	}
	if s.RegionOfInterest != nil {
		roi := *s.RegionOfInterest
		out.RegionOfInterest = &roi
	}
	out.TargetFPS = s.TargetFPS
	out.ScanEnabled = s.ScanEnabled
	out.HighlightingEnabled = s.HighlightingEnabled
	out.EventBuffer = s.EventBuffer

	if err := out.Validate(); err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid scanner section: %w", err)
	}
	return out, nil
}

// ToDecodeOptions converts the decode section to backend options, restricted
// to the configured code types.
func (c *Config) ToDecodeOptions() (barcode.Options, error) {
	types, err := barcode.ParseCodeTypes(c.Scanner.CodeTypes)
	if err != nil {
		return barcode.Options{}, fmt.Errorf("invalid scanner.code_types: %w", err)
	}
	return barcode.Options{Types: types, TryHarder: c.Decode.TryHarder, Multi: c.Decode.Multi}, nil
}

// ToParallelConfig converts the decode section to worker pool settings.
func (c *Config) ToParallelConfig(progress pipeline.ProgressCallback) (pipeline.ParallelConfig, error) {
	opts, err := c.ToDecodeOptions()
	if err != nil {
		return pipeline.ParallelConfig{}, err
	}
	return pipeline.ParallelConfig{
		MaxWorkers:       c.Decode.Workers,
		Options:          opts,
		ProgressCallback: progress,
	}, nil
}

// ParseLayout parses a "WIDTHxHEIGHT" view size such as "1080x1920".
func ParseLayout(s string) (geometry.Size, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return geometry.Size{}, fmt.Errorf("invalid layout %q (expected WIDTHxHEIGHT)", s)
	}
	nums, err := parseFloats(ws, hs)
	if err != nil {
		return geometry.Size{}, fmt.Errorf("invalid layout %q: %w", s, err)
	}
	size := geometry.Size{Width: nums[0], Height: nums[1]}
	if !size.Known() {
		return geometry.Size{}, fmt.Errorf("invalid layout %q: width and height must be positive", s)
	}
	return size, nil
}

// ParseRegion parses "X,Y,WIDTH,HEIGHT" into a region of interest. An empty
// string means no region.
func ParseRegion(s string) (*geometry.Rect, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil //nolint:nilnil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid region %q (expected X,Y,WIDTH,HEIGHT)", s)
	}
	nums, err := parseFloats(parts...)
	if err != nil {
		return nil, fmt.Errorf("invalid region %q: %w", s, err)
	}
	r := geometry.Rect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}
	if r.Width < 0 || r.Height < 0 {
		return nil, fmt.Errorf("invalid region %q: %w", s, pipeline.ErrInvalidRegion)
	}
	return &r, nil
}

func parseFloats(fields ...string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
