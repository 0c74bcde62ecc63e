//nolint:lll
package config

import (
	"slices"

	"github.com/MeKo-Tech/codescan/internal/geometry"
)

// Config represents the complete configuration for the codescan application.
// It includes settings for all commands (serve, replay, image) and
// supports loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Scanner session defaults
	Scanner ScannerConfig `mapstructure:"scanner" yaml:"scanner" json:"scanner"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Image decoding (for image command)
	Decode DecodeConfig `mapstructure:"decode" yaml:"decode" json:"decode"`
}

// ScannerConfig mirrors pipeline.Config in file-friendly form.
type ScannerConfig struct {
	CodeTypes           []string       `mapstructure:"code_types" yaml:"code_types" json:"code_types"`
	RegionOfInterest    *geometry.Rect `mapstructure:"region_of_interest" yaml:"region_of_interest,omitempty" json:"region_of_interest,omitempty"`
	ScanMode            string         `mapstructure:"scan_mode" yaml:"scan_mode" json:"scan_mode"`
	TargetFPS           float64        `mapstructure:"target_fps" yaml:"target_fps" json:"target_fps"`
	ScanEnabled         bool           `mapstructure:"scan_enabled" yaml:"scan_enabled" json:"scan_enabled"`
	ScaleMode           string         `mapstructure:"scale_mode" yaml:"scale_mode" json:"scale_mode"`
	HighlightingEnabled bool           `mapstructure:"highlighting_enabled" yaml:"highlighting_enabled" json:"highlighting_enabled"`
	Platform            string         `mapstructure:"platform" yaml:"platform" json:"platform"`
	EventBuffer         int            `mapstructure:"event_buffer" yaml:"event_buffer" json:"event_buffer"`
}

// Clone returns a copy that shares no memory with s, so decoding into the
// copy cannot change s.
func (s ScannerConfig) Clone() ScannerConfig {
	out := s
	out.CodeTypes = slices.Clone(s.CodeTypes)
	if s.RegionOfInterest != nil {
		roi := *s.RegionOfInterest
		out.RegionOfInterest = &roi
	}
	return out
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	ReadTimeoutSec  int    `mapstructure:"read_timeout_sec" yaml:"read_timeout_sec" json:"read_timeout_sec"`
	MaxMessageKB    int    `mapstructure:"max_message_kb" yaml:"max_message_kb" json:"max_message_kb"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Limits on new scanning sessions per client address; 0 disables a limit.
	SessionsPerMinute int `mapstructure:"sessions_per_minute" yaml:"sessions_per_minute" json:"sessions_per_minute"`
	SessionsPerHour   int `mapstructure:"sessions_per_hour" yaml:"sessions_per_hour" json:"sessions_per_hour"`
}

// DecodeConfig contains image backend settings.
type DecodeConfig struct {
	Workers   int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	TryHarder bool `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	Multi     bool `mapstructure:"multi" yaml:"multi" json:"multi"`
	MaxSide   int  `mapstructure:"max_side" yaml:"max_side" json:"max_side"`
}
