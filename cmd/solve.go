package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scalebench/internal/agents"
	"scalebench/internal/config"
	"scalebench/internal/pipeline"
	"scalebench/internal/pricing"
	"scalebench/internal/profile"
	"scalebench/internal/report"
	"scalebench/internal/result"
	"scalebench/internal/runner"
	"scalebench/internal/sandbox"
	"scalebench/internal/schema"
	"scalebench/internal/telemetry"
)

var (
	flagTask     string
	flagTasksDir string
	flagParallel int64
)

func newSolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Run the full optimization pipeline for one or more tasks",
		RunE:  runSolve,
	}
	cmd.Flags().StringVar(&flagTask, "task", "", "path to a single task JSON file")
	cmd.Flags().StringVar(&flagTasksDir, "tasks", "", "directory of task JSON files")
	cmd.Flags().Int64Var(&flagParallel, "parallel", 0, "override max concurrent sandboxes")
	return cmd
}

func runSolve(cmd *cobra.Command, args []string) error {
	if flagTask == "" && flagTasksDir == "" {
		return fmt.Errorf("one of --task or --tasks is required")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagParallel > 0 {
		cfg.Sandbox.MaxConcurrent = flagParallel
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	problems, err := loadProblems()
	if err != nil {
		return err
	}

	ctx := context.Background()

	table, err := pricing.Load(cfg.Pricing.Table)
	if err != nil {
		return err
	}
	meter := pricing.NewMeter(table)

	sb, err := sandbox.NewRunner(cfg.Sandbox, logger)
	if err != nil {
		return err
	}
	defer sb.Close()

	planner, err := agents.NewGeminiPlanner(ctx, cfg.Models.Planner, meter, logger)
	if err != nil {
		return err
	}
	coder, err := agents.NewOpenAICoder(cfg.Models.Coder, meter, logger)
	if err != nil {
		return err
	}

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)
	store := result.NewStore(runDir)

	controller := pipeline.NewController(
		cfg.Loop,
		planner,
		coder,
		agents.NewCurveFitAnalyst(logger),
		agents.NewHeuristicPruner(),
		profile.New(sb, telemetry.GNUTime{}, cfg.Scales, logger),
		logger,
	)
	controller.SetSink(store)
	controller.SetUsage(meter.Total)

	var jobs []runner.Job
	for _, problem := range problems {
		problem := problem
		jobs = append(jobs, func(ctx context.Context) error {
			outcome, err := controller.Solve(ctx, problem)
			if err != nil {
				return fmt.Errorf("task %s: %w", problem.TaskID, err)
			}
			fmt.Printf("  %s: %s (%d iterations)\n", outcome.TaskID, outcome.Status, outcome.Iterations)
			return nil
		})
	}
	for _, err := range runner.RunLimited(ctx, cfg.Sandbox.MaxConcurrent, jobs) {
		logger.Error("task failed", zap.Error(err))
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(runDir, "table", os.Stdout)
}

func loadProblems() ([]schema.ProblemInput, error) {
	var paths []string
	if flagTask != "" {
		paths = append(paths, flagTask)
	}
	if flagTasksDir != "" {
		entries, err := os.ReadDir(flagTasksDir)
		if err != nil {
			return nil, fmt.Errorf("reading tasks dir: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				paths = append(paths, filepath.Join(flagTasksDir, e.Name()))
			}
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no task files found")
	}

	var problems []schema.ProblemInput
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading task %s: %w", path, err)
		}
		var problem schema.ProblemInput
		if err := json.Unmarshal(data, &problem); err != nil {
			return nil, fmt.Errorf("parsing task %s: %w", path, err)
		}
		if problem.TaskID == "" {
			problem.TaskID = uuid.NewString()
		}
		if err := problem.Validate(); err != nil {
			return nil, fmt.Errorf("task %s: %w", path, err)
		}
		problems = append(problems, problem)
	}
	return problems, nil
}
