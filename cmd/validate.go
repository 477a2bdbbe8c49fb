package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"scalebench/internal/config"
	"scalebench/internal/sandbox"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file and sandbox connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Config OK: image=%s timeout=%ds memory=%dMB pids=%d\n",
				cfg.Sandbox.Image, cfg.Sandbox.TimeoutSec, cfg.Sandbox.MemoryMB, cfg.Sandbox.PidsLimit)
			fmt.Printf("Scales: corner=%v ladder=%v\n", cfg.Scales.Corner, cfg.Scales.Ladder)
			fmt.Printf("Loop: max_iterations=%d epsilon=%.2f failure_cap=%d\n",
				cfg.Loop.MaxIterations, cfg.Loop.Epsilon, cfg.Loop.AgentFailureCap)

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			sb, err := sandbox.NewRunner(cfg.Sandbox, logger)
			if err != nil {
				return fmt.Errorf("docker unavailable: %w", err)
			}
			sb.Close()
			fmt.Println("Docker client OK")
			return nil
		},
	}
}
