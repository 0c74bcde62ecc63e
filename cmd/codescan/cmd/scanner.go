package cmd

import (
	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/spf13/cobra"
)

// addScannerFlags adds the session configuration flags shared by serve,
// replay and image.
func addScannerFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("code-types", nil, "code types to report, e.g. qr,ean-13 (default: all)")
	cmd.Flags().String("scan-mode", "continuous", "scan mode: continuous or once")
	cmd.Flags().Float64("target-fps", 2, "maximum frames processed per second")
	cmd.Flags().String("scale-mode", "cover", "view scaling: cover or contain")
	cmd.Flags().String("platform", "reflect", "rotation table: reflect or portrait-only")
	cmd.Flags().Bool("highlights", true, "project overlay highlights into view space")
	cmd.Flags().String("region", "", "region of interest in view pixels: X,Y,WIDTH,HEIGHT")
}

var scannerBindings = []flagBinding{
	{"scanner.code_types", "code-types"},
	{"scanner.scan_mode", "scan-mode"},
	{"scanner.target_fps", "target-fps"},
	{"scanner.scale_mode", "scale-mode"},
	{"scanner.platform", "platform"},
	{"scanner.highlighting_enabled", "highlights"},
}

// bindScannerFlags is used as PreRunE by commands with scanner flags.
func bindScannerFlags(cmd *cobra.Command, _ []string) error {
	return bindFlags(cmd.Flags(), scannerBindings)
}

// scannerConfig returns the effective configuration with the --region flag
// applied on top of the configured region.
func scannerConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("region") {
		s, _ := cmd.Flags().GetString("region")
		roi, err := config.ParseRegion(s)
		if err != nil {
			return nil, err
		}
		cfg.Scanner.RegionOfInterest = roi
	}
	if _, err := cfg.ToPipelineConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}
