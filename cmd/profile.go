package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scalebench/internal/config"
	"scalebench/internal/profile"
	"scalebench/internal/sandbox"
	"scalebench/internal/schema"
	"scalebench/internal/telemetry"
)

var (
	flagSource string
	flagNMax   int
	flagDebug  bool
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Profile a C++ source file across input scales, no agents involved",
		RunE:  runProfile,
	}
	cmd.Flags().StringVar(&flagSource, "source", "", "path to a C++ source file")
	cmd.Flags().IntVar(&flagNMax, "n-max", 100_000, "upper input-size bound")
	cmd.Flags().BoolVar(&flagDebug, "debug", false, "collect a gprof hotspot pass")
	cmd.MarkFlagRequired("source")
	return cmd
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	source, err := os.ReadFile(flagSource)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	sb, err := sandbox.NewRunner(cfg.Sandbox, logger)
	if err != nil {
		return err
	}
	defer sb.Close()

	code := schema.CodeMessage{
		TaskID:        uuid.NewString(),
		Source:        string(source),
		CompileFlags:  sandbox.CompileFlags,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schema.SchemaVersion,
	}

	profiler := profile.New(sb, telemetry.GNUTime{}, cfg.Scales, logger)
	report, err := profiler.Profile(context.Background(), code, flagNMax, flagDebug)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
