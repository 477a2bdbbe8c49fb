// Package pipeline sequences generation, pruning, profiling, and
// verdict-based routing for one task, with deterministic termination.
package pipeline

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"scalebench/internal/config"
	"scalebench/internal/schema"
)

// External collaborators. The controller never looks inside them: it only
// validates their messages at the boundary and routes on the result.

type Planner interface {
	Plan(ctx context.Context, problem schema.ProblemInput, feedback string) (schema.PlanMessage, error)
}

type Coder interface {
	Code(ctx context.Context, plan schema.PlanMessage, patch string) (schema.CodeMessage, error)
}

type Analyst interface {
	Analyze(ctx context.Context, report *schema.ProfileReport, constraints map[string]int) (schema.VerdictMessage, error)
}

// Pruner rejects a plan before any build or model spend. A nil error means
// the plan passes.
type Pruner interface {
	Check(plan schema.PlanMessage) error
}

type Profiler interface {
	Profile(ctx context.Context, code schema.CodeMessage, nMax int, debug bool) (*schema.ProfileReport, error)
}

// Sink receives every assembled report and the terminal outcome. Persistence
// failures are logged, never fatal.
type Sink interface {
	SaveReport(report *schema.ProfileReport) error
	SaveOutcome(outcome *schema.TaskOutcome) error
}

// UsageFunc reports cumulative collaborator token usage and estimated cost.
type UsageFunc func() (tokens int, costUSD float64)

// AgentError marks invalid or unparseable collaborator output. It counts
// toward the consecutive-failure cap; sandbox outcomes never do.
type AgentError struct {
	Agent string
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s agent failed: %v", e.Agent, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

type Controller struct {
	cfg      config.Loop
	planner  Planner
	coder    Coder
	analyst  Analyst
	pruner   Pruner
	profiler Profiler
	sink     Sink
	usage    UsageFunc
	log      *zap.Logger
}

func NewController(cfg config.Loop, planner Planner, coder Coder, analyst Analyst, pruner Pruner, profiler Profiler, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		planner:  planner,
		coder:    coder,
		analyst:  analyst,
		pruner:   pruner,
		profiler: profiler,
		log:      logger.Named("pipeline"),
	}
}

// SetSink installs a persistence sink for reports and outcomes.
func (c *Controller) SetSink(sink Sink) { c.sink = sink }

// SetUsage installs the token-usage reader applied to the final outcome.
func (c *Controller) SetUsage(fn UsageFunc) { c.usage = fn }

// state is the per-task pipeline state. Created at task start, mutated only
// here, torn down when a terminal status is recorded. Counters are scoped
// per task, never shared.
type state struct {
	stage         schema.Status
	iteration     int
	agentFailures int
	bestRuntime   float64
	bestMemory    float64
	prevRuntime   float64

	plan     schema.PlanMessage
	code     schema.CodeMessage
	report   *schema.ProfileReport
	verdict  *schema.VerdictMessage
	patch    string
	feedback string
	err      error
}

// Solve runs the full pipeline for one task. Given identical collaborator
// responses and identical telemetry, the path through stages is exactly
// reproducible. The returned outcome always carries exactly one terminal
// status.
func (c *Controller) Solve(ctx context.Context, problem schema.ProblemInput) (*schema.TaskOutcome, error) {
	if err := problem.Validate(); err != nil {
		return nil, err
	}
	log := c.log.With(zap.String("task", problem.TaskID))

	st := &state{
		stage:       schema.StatusPlanning,
		bestRuntime: math.Inf(1),
		bestMemory:  math.Inf(1),
		prevRuntime: math.Inf(1),
	}

	for !st.stage.Terminal() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Info("stage", zap.String("stage", string(st.stage)), zap.Int("iteration", st.iteration))
		switch st.stage {
		case schema.StatusPlanning:
			c.stepPlanning(ctx, problem, st)
		case schema.StatusPruning:
			c.stepPruning(st)
		case schema.StatusCoding:
			c.stepCoding(ctx, st)
		case schema.StatusProfiling:
			c.stepProfiling(ctx, problem, st)
		case schema.StatusAnalyzing:
			c.stepAnalyzing(ctx, problem, st)
		default:
			return nil, fmt.Errorf("task %s: unknown stage %q", problem.TaskID, st.stage)
		}
	}

	outcome := c.finalize(problem, st)
	if c.sink != nil {
		if err := c.sink.SaveOutcome(outcome); err != nil {
			log.Warn("saving outcome", zap.Error(err))
		}
	}
	log.Info("task finished",
		zap.String("status", string(outcome.Status)),
		zap.Int("iterations", outcome.Iterations))
	return outcome, nil
}

func (c *Controller) stepPlanning(ctx context.Context, problem schema.ProblemInput, st *state) {
	plan, err := c.planner.Plan(ctx, problem, st.feedback)
	if err == nil {
		err = plan.Validate()
	}
	if err != nil {
		c.agentFailed(st, "planner", err)
		return
	}
	st.agentFailures = 0
	st.feedback = ""
	st.plan = plan
	st.stage = schema.StatusPruning
}

func (c *Controller) stepPruning(st *state) {
	if err := c.pruner.Check(st.plan); err != nil {
		st.err = err
		st.stage = schema.StatusStaticPruneRejected
		return
	}
	st.stage = schema.StatusCoding
}

func (c *Controller) stepCoding(ctx context.Context, st *state) {
	code, err := c.coder.Code(ctx, st.plan, st.patch)
	if err == nil {
		err = code.Validate()
	}
	if err != nil {
		c.agentFailed(st, "coder", err)
		return
	}
	st.agentFailures = 0
	st.patch = ""
	code.Iteration = st.iteration
	st.code = code
	st.stage = schema.StatusProfiling
}

func (c *Controller) stepProfiling(ctx context.Context, problem schema.ProblemInput, st *state) {
	report, err := c.profiler.Profile(ctx, st.code, st.plan.NMax(), problem.Debug)
	if err != nil {
		// Compile, parse, and assembly failures are request-level: the
		// task ends here. Per-scale failures never reach this path.
		st.err = err
		st.stage = schema.StatusFailedCrash
		return
	}
	if c.sink != nil {
		if err := c.sink.SaveReport(report); err != nil {
			c.log.Warn("saving report", zap.Error(err))
		}
	}
	st.report = report
	// Unconditional: the analyst must see the report even when every
	// scale carries a failure sentinel.
	st.stage = schema.StatusAnalyzing
}

func (c *Controller) stepAnalyzing(ctx context.Context, problem schema.ProblemInput, st *state) {
	verdict, err := c.analyst.Analyze(ctx, st.report, problem.Constraints)
	if err == nil {
		err = verdict.Validate()
	}
	if err != nil {
		c.agentFailed(st, "analyst", err)
		return
	}
	st.agentFailures = 0
	st.verdict = &verdict

	cur := st.report.LargestScaleRuntime()
	c.trackBest(st)

	// Iteration cap first: once the last permitted iteration has been
	// analyzed, the task is exhausted regardless of the verdict.
	if st.iteration+1 >= c.cfg.MaxIterations {
		st.stage = schema.StatusFailedExhausted
		return
	}
	if verdict.Efficient {
		st.stage = schema.StatusSucceeded
		return
	}
	// Diminishing returns on the largest-scale runtime, comparable only
	// when both this and the prior iteration produced finite figures.
	if !math.IsInf(cur, 1) && !math.IsInf(st.prevRuntime, 1) {
		gain := (st.prevRuntime - cur) / st.prevRuntime
		if gain < c.cfg.Epsilon {
			st.stage = schema.StatusFailedExhausted
			return
		}
	}
	if !math.IsInf(cur, 1) {
		st.prevRuntime = cur
	}

	st.iteration++
	switch verdict.TargetAgent {
	case schema.TargetCoder:
		st.patch = verdict.Patch
		st.stage = schema.StatusCoding
	default:
		// Plan-level routing, including verdicts with no explicit target:
		// re-planning is the conservative move when the analyst cannot
		// name a code-level fix.
		st.feedback = verdict.Patch
		st.stage = schema.StatusPlanning
	}
}

// agentFailed records one collaborator failure. Two consecutive failures
// abort the task; any collaborator success resets the counter.
func (c *Controller) agentFailed(st *state, agent string, err error) {
	st.agentFailures++
	agentErr := &AgentError{Agent: agent, Err: err}
	c.log.Warn("agent failure",
		zap.String("agent", agent),
		zap.Int("consecutive", st.agentFailures),
		zap.Error(err))
	if st.agentFailures >= c.cfg.AgentFailureCap {
		st.err = agentErr
		st.stage = schema.StatusFailedCrash
	}
}

func (c *Controller) trackBest(st *state) {
	if n := len(st.report.RuntimeMS); n > 0 {
		if rt := st.report.RuntimeMS[n-1]; rt < st.bestRuntime {
			st.bestRuntime = rt
		}
		if mem := st.report.PeakMemoryMB[n-1]; mem < st.bestMemory {
			st.bestMemory = mem
		}
	}
}

func (c *Controller) finalize(problem schema.ProblemInput, st *state) *schema.TaskOutcome {
	outcome := &schema.TaskOutcome{
		TaskID:      problem.TaskID,
		Status:      st.stage,
		Iterations:  st.iteration + 1,
		LastVerdict: st.verdict,
	}
	if st.report == nil {
		outcome.Iterations = st.iteration
	}
	if !math.IsInf(st.bestRuntime, 1) {
		outcome.BestRuntimeMS = st.bestRuntime
	}
	if !math.IsInf(st.bestMemory, 1) {
		outcome.BestMemoryMB = st.bestMemory
	}
	if outcome.Status == schema.StatusSucceeded {
		outcome.Source = st.code.Source
	}
	if st.err != nil {
		outcome.Error = st.err.Error()
	}
	if c.usage != nil {
		outcome.TotalTokens, outcome.TotalCostUSD = c.usage()
	}
	return outcome
}
