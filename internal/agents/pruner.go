package agents

import (
	"fmt"
	"strings"

	"scalebench/internal/schema"
)

// HeuristicPruner rejects plans whose declared approach cannot meet the
// input bounds, before any model or sandbox spend. The rules are cheap
// textual heuristics; the pruner errs on the side of letting plans through.
type HeuristicPruner struct{}

func NewHeuristicPruner() *HeuristicPruner { return &HeuristicPruner{} }

func (HeuristicPruner) Check(plan schema.PlanMessage) error {
	algo := strings.ToLower(plan.Algorithm)
	n := plan.NMax()

	switch {
	case n >= 10_000 && mentionsAny(algo, "naive recursion", "exhaustive recursion", "brute force recursion"):
		return fmt.Errorf("plan rejected: recursive brute force at n=%d", n)
	case n >= 1_000 && mentionsAny(algo, "sort inside", "sort in loop", "sort per"):
		return fmt.Errorf("plan rejected: repeated sorting inside a loop at n=%d", n)
	case n >= 100_000 && mentionsAny(algo, "triple loop", "cubic", "o(n^3)"):
		return fmt.Errorf("plan rejected: cubic approach at n=%d", n)
	}
	return nil
}

func mentionsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
