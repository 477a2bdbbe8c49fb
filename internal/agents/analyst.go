package agents

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"scalebench/internal/schema"
)

// CurveFitAnalyst classifies empirical growth by fitting a slope to
// log10(runtime) over log10(n) and routes inefficiency verdicts. It is
// fully deterministic: identical reports produce identical verdicts.
type CurveFitAnalyst struct {
	log *zap.Logger

	mu   sync.Mutex
	seen map[string]taskHistory
}

type taskHistory struct {
	class       string
	lastRuntime float64
	target      schema.TargetAgent
}

func NewCurveFitAnalyst(logger *zap.Logger) *CurveFitAnalyst {
	return &CurveFitAnalyst{
		log:  logger.Named("analyst"),
		seen: make(map[string]taskHistory),
	}
}

func (a *CurveFitAnalyst) Analyze(ctx context.Context, report *schema.ProfileReport, constraints map[string]int) (schema.VerdictMessage, error) {
	class, memGrowth := classify(report)
	efficient := class == "O(1)" || class == "O(n)"

	a.mu.Lock()
	prev, had := a.seen[report.TaskID]
	a.mu.Unlock()
	cur := report.LargestScaleRuntime()

	verdict := schema.VerdictMessage{
		TaskID:        report.TaskID,
		Iteration:     report.Iteration,
		Efficient:     efficient,
		Complexity:    class,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schema.SchemaVersion,
	}
	if had && prev.lastRuntime > 0 && !math.IsInf(prev.lastRuntime, 1) && !math.IsInf(cur, 1) {
		verdict.PerfGain = (prev.lastRuntime - cur) / prev.lastRuntime
	}
	if efficient {
		verdict.TargetAgent = schema.TargetNone
		a.remember(report.TaskID, class, cur, verdict.TargetAgent)
		return verdict, nil
	}

	// A code-level patch gets one chance; when the same complexity class
	// comes back after a coder retry, the algorithm itself is the problem.
	// A repeat following a re-plan starts a fresh coder attempt instead.
	if had && prev.class == class && prev.target == schema.TargetCoder {
		verdict.TargetAgent = schema.TargetPlanner
		verdict.Patch = "The " + class + " growth persists after local optimization; pick a different algorithm."
	} else {
		verdict.TargetAgent = schema.TargetCoder
		verdict.Patch = patchHint(class, memGrowth)
	}
	a.remember(report.TaskID, class, cur, verdict.TargetAgent)
	a.log.Debug("verdict",
		zap.String("task", report.TaskID),
		zap.String("complexity", class),
		zap.Bool("efficient", efficient),
		zap.String("target", string(verdict.TargetAgent)))
	return verdict, nil
}

func (a *CurveFitAnalyst) remember(taskID, class string, runtime float64, target schema.TargetAgent) {
	a.mu.Lock()
	a.seen[taskID] = taskHistory{class: class, lastRuntime: runtime, target: target}
	a.mu.Unlock()
}

// classify fits the growth class and the memory growth factor across the
// measured scales, ignoring failed and sub-logarithmic points.
func classify(report *schema.ProfileReport) (string, float64) {
	var xs, ys []float64
	var firstMem, lastMem float64
	for i, n := range report.InputSizes {
		rt := report.RuntimeMS[i]
		if n < 2 || rt <= 0 || math.IsInf(rt, 1) {
			continue
		}
		xs = append(xs, math.Log10(float64(n)))
		ys = append(ys, math.Log10(rt))
		if mem := report.PeakMemoryMB[i]; !math.IsInf(mem, 1) {
			if firstMem == 0 {
				firstMem = mem
			}
			lastMem = mem
		}
	}
	memGrowth := 1.0
	if firstMem > 0 {
		memGrowth = lastMem / firstMem
	}
	if len(xs) < 2 {
		return "O(?)", memGrowth
	}
	slope := leastSquaresSlope(xs, ys)
	switch {
	case slope < 0.5:
		return "O(1)", memGrowth
	case slope < 1.5:
		return "O(n)", memGrowth
	case slope < 2.5:
		return "O(n^2)", memGrowth
	default:
		return "O(n^k)", memGrowth
	}
}

func leastSquaresSlope(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sx, sy, sxy, sxx float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxy += xs[i] * ys[i]
		sxx += xs[i] * xs[i]
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / denom
}

func patchHint(class string, memGrowth float64) string {
	switch class {
	case "O(n^2)":
		if memGrowth > 4 {
			return "Replace the nested scan with a hash map (unordered_map) lookup to cut both time and memory."
		}
		return "Restructure the nested loops: hoist invariant work and break out early once the answer is fixed."
	case "O(n^k)":
		return "Replace the exhaustive search with dynamic programming or memoization over the repeated subproblems."
	default:
		return "Reduce per-element work in the main loop; avoid repeated allocation and redundant passes."
	}
}
