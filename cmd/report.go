package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"scalebench/internal/config"
	"scalebench/internal/report"
)

var (
	flagFormat string
	flagRunDir string
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a run directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			runDir := flagRunDir
			if runDir == "" {
				cfg, err := config.Load(cfgFile)
				if err != nil {
					return err
				}
				runDir = filepath.Join(cfg.Results.Dir, "latest")
			}
			return report.Generate(runDir, flagFormat, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format: table, markdown, json")
	cmd.Flags().StringVar(&flagRunDir, "run-dir", "", "run directory (default: <results>/latest)")
	return cmd
}
