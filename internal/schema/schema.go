// Package schema defines the message contracts exchanged between the
// pipeline controller, the profiling engine, and the external collaborators.
// Field names and enum literals are load-bearing: bump SchemaVersion before
// changing any of them.
package schema

import (
	"fmt"
	"time"
)

const SchemaVersion = "1.0.0"

// TargetAgent names the collaborator an inefficiency verdict routes to.
type TargetAgent string

const (
	TargetPlanner TargetAgent = "PLANNER"
	TargetCoder   TargetAgent = "CODER"
	TargetNone    TargetAgent = "NONE"
)

// Status is a pipeline stage. The last four are terminal.
type Status string

const (
	StatusPlanning            Status = "PLANNING"
	StatusPruning             Status = "PRUNING"
	StatusCoding              Status = "CODING"
	StatusProfiling           Status = "PROFILING"
	StatusAnalyzing           Status = "ANALYZING"
	StatusSucceeded           Status = "SUCCEEDED"
	StatusStaticPruneRejected Status = "STATIC_PRUNE_REJECTED"
	StatusFailedExhausted     Status = "FAILED_EXHAUSTED"
	StatusFailedCrash         Status = "FAILED_CRASH"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusStaticPruneRejected, StatusFailedExhausted, StatusFailedCrash:
		return true
	}
	return false
}

// ProblemInput is the inbound task description handed to the controller.
type ProblemInput struct {
	TaskID      string         `json:"task_id"`
	Prompt      string         `json:"prompt"`
	Constraints map[string]int `json:"constraints"`
	Debug       bool           `json:"debug,omitempty"`
}

func (p *ProblemInput) Validate() error {
	if p.TaskID == "" {
		return fmt.Errorf("problem: task_id is required")
	}
	if p.Prompt == "" {
		return fmt.Errorf("problem %s: prompt is required", p.TaskID)
	}
	return nil
}

// PlanMessage is produced by the planner collaborator.
type PlanMessage struct {
	TaskID        string         `json:"task_id"`
	Iteration     int            `json:"iteration"`
	Algorithm     string         `json:"algorithm"`
	InputBounds   map[string]int `json:"input_bounds"`
	Constraints   map[string]int `json:"constraints"`
	Timestamp     time.Time      `json:"timestamp"`
	SchemaVersion string         `json:"schema_version"`
}

func (p *PlanMessage) Validate() error {
	if p.TaskID == "" {
		return fmt.Errorf("plan: task_id is required")
	}
	if p.Algorithm == "" {
		return fmt.Errorf("plan %s: algorithm is required", p.TaskID)
	}
	if len(p.InputBounds) == 0 {
		return fmt.Errorf("plan %s: input_bounds is required", p.TaskID)
	}
	for k, v := range p.InputBounds {
		if v < 0 {
			return fmt.Errorf("plan %s: input bound %q is negative", p.TaskID, k)
		}
	}
	return nil
}

// NMax returns the declared upper bound for the primary input dimension.
func (p *PlanMessage) NMax() int {
	if n, ok := p.InputBounds["n"]; ok {
		return n
	}
	max := 0
	for _, v := range p.InputBounds {
		if v > max {
			max = v
		}
	}
	return max
}

// CodeMessage carries one candidate C++ program from the coder collaborator.
type CodeMessage struct {
	TaskID        string    `json:"task_id"`
	Iteration     int       `json:"iteration"`
	Source        string    `json:"source"`
	CompileFlags  []string  `json:"compile_flags"`
	Timestamp     time.Time `json:"timestamp"`
	SchemaVersion string    `json:"schema_version"`
}

func (c *CodeMessage) Validate() error {
	if c.TaskID == "" {
		return fmt.Errorf("code: task_id is required")
	}
	if c.Source == "" {
		return fmt.Errorf("code %s: source is empty", c.TaskID)
	}
	return nil
}

// VerdictMessage is the analyst's routing decision for one iteration.
type VerdictMessage struct {
	TaskID        string      `json:"task_id"`
	Iteration     int         `json:"iteration"`
	Efficient     bool        `json:"efficient"`
	TargetAgent   TargetAgent `json:"target_agent,omitempty"`
	Patch         string      `json:"patch,omitempty"`
	PerfGain      float64     `json:"perf_gain"`
	Complexity    string      `json:"complexity,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
	SchemaVersion string      `json:"schema_version"`
}

func (v *VerdictMessage) Validate() error {
	if v.TaskID == "" {
		return fmt.Errorf("verdict: task_id is required")
	}
	switch v.TargetAgent {
	case "", TargetPlanner, TargetCoder, TargetNone:
	default:
		return fmt.Errorf("verdict %s: unknown target_agent %q", v.TaskID, v.TargetAgent)
	}
	if !v.Efficient && v.TargetAgent == "" {
		return fmt.Errorf("verdict %s: inefficient verdict needs a target_agent", v.TaskID)
	}
	return nil
}

// TaskOutcome is the terminal record for one task: final status plus the
// last good report and verdict.
type TaskOutcome struct {
	TaskID        string          `json:"task_id"`
	Status        Status          `json:"status"`
	Iterations    int             `json:"iterations"`
	BestRuntimeMS float64         `json:"best_runtime_ms"`
	BestMemoryMB  float64         `json:"best_memory_mb"`
	Source        string          `json:"source,omitempty"`
	LastVerdict   *VerdictMessage `json:"last_verdict,omitempty"`
	TotalTokens   int             `json:"total_tokens"`
	TotalCostUSD  float64         `json:"total_cost_usd"`
	Error         string          `json:"error,omitempty"`
}
