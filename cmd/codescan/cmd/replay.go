package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/codescan/internal/replay"
	"github.com/spf13/cobra"
)

// replayCmd represents the replay command.
var replayCmd = &cobra.Command{
	Use:   "replay [script.yaml...]",
	Short: "Replay recorded scanner sessions",
	Long: `Replay YAML scripts of layout changes, scan toggles and detector frames
through a fresh scanner session each, and report the scan events and
highlights the session produced. Frames may carry expectations; the command
fails when any expectation does not hold.

Examples:
  codescan replay session.yaml
  codescan replay testdata/replay/*.yaml --format json
  codescan replay session.yaml --scan-mode once --output report.yaml --format yaml`,
	Args: cobra.MinimumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindScannerFlags(cmd, args); err != nil {
			return err
		}
		return bindFlags(cmd.Flags(), outputBindings)
	},
	RunE: runReplay,
}

var outputBindings = []flagBinding{
	{"output.format", "format"},
	{"output.file", "output"},
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := scannerConfig(cmd)
	if err != nil {
		return err
	}

	runner := replay.NewRunner(cfg.Scanner)
	reports := make([]*replay.Report, 0, len(args))
	failed := 0
	for _, path := range args {
		script, err := replay.Load(path)
		if err != nil {
			return err
		}
		report, err := runner.Run(commandContext(cmd), script)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !report.Passed() {
			failed++
			slog.Warn("Replay expectations failed", "script", script.Name, "failures", len(report.Failures()))
		}
		reports = append(reports, report)
	}

	w, closeOut, err := openOutput(cmd, cfg.Output.File)
	if err != nil {
		return err
	}
	defer closeOut()
	if err := replay.Write(w, cfg.Output.Format, reports...); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(reports))
	}
	return nil
}

// openOutput returns the command's stdout, or path when set.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path is provided by the user
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			slog.Error("Failed to close output file", "path", path, "error", err)
		}
	}, nil
}

func init() {
	rootCmd.AddCommand(replayCmd)
	addScannerFlags(replayCmd)
	replayCmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml)")
	replayCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
}
