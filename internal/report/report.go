// Package report summarizes a run directory's task outcomes.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"scalebench/internal/result"
	"scalebench/internal/schema"
)

type Summary struct {
	Tasks        int            `json:"tasks"`
	Succeeded    int            `json:"succeeded"`
	ByStatus     map[string]int `json:"by_status"`
	MeanIters    float64        `json:"mean_iterations"`
	TotalCostUSD float64        `json:"total_cost_usd"`
	TotalTokens  int            `json:"total_tokens"`
	Rows         []Row          `json:"rows"`
}

type Row struct {
	TaskID        string  `json:"task_id"`
	Status        string  `json:"status"`
	Iterations    int     `json:"iterations"`
	BestRuntimeMS float64 `json:"best_runtime_ms"`
	BestMemoryMB  float64 `json:"best_memory_mb"`
	CostUSD       float64 `json:"cost_usd"`
}

// Generate reads every task outcome under runDir and writes the summary.
func Generate(runDir, format string, w io.Writer) error {
	outcomes, err := collectOutcomes(runDir)
	if err != nil {
		return err
	}
	summary := aggregate(outcomes)

	switch format {
	case "markdown":
		return writeMarkdown(summary, w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	default:
		return writeTable(summary, w)
	}
}

func collectOutcomes(runDir string) ([]*schema.TaskOutcome, error) {
	var outcomes []*schema.TaskOutcome
	err := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() == "outcome.json" {
			outcome, err := result.ReadOutcome(path)
			if err != nil {
				return nil
			}
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	return outcomes, err
}

func aggregate(outcomes []*schema.TaskOutcome) *Summary {
	s := &Summary{ByStatus: map[string]int{}}
	var iters int
	for _, o := range outcomes {
		s.Tasks++
		s.ByStatus[string(o.Status)]++
		if o.Status == schema.StatusSucceeded {
			s.Succeeded++
		}
		iters += o.Iterations
		s.TotalCostUSD += o.TotalCostUSD
		s.TotalTokens += o.TotalTokens
		s.Rows = append(s.Rows, Row{
			TaskID:        o.TaskID,
			Status:        string(o.Status),
			Iterations:    o.Iterations,
			BestRuntimeMS: o.BestRuntimeMS,
			BestMemoryMB:  o.BestMemoryMB,
			CostUSD:       o.TotalCostUSD,
		})
	}
	if s.Tasks > 0 {
		s.MeanIters = float64(iters) / float64(s.Tasks)
	}
	sort.Slice(s.Rows, func(i, j int) bool { return s.Rows[i].TaskID < s.Rows[j].TaskID })
	return s
}

func writeTable(s *Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tSTATUS\tITERS\tBEST MS\tBEST MB\tCOST USD")
	for _, r := range s.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%.0f\t%.4f\n",
			r.TaskID, r.Status, r.Iterations, r.BestRuntimeMS, r.BestMemoryMB, r.CostUSD)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d/%d succeeded, mean %.1f iterations, $%.4f total\n",
		s.Succeeded, s.Tasks, s.MeanIters, s.TotalCostUSD)
	return nil
}

func writeMarkdown(s *Summary, w io.Writer) error {
	fmt.Fprintln(w, "| Task | Status | Iters | Best ms | Best MB | Cost USD |")
	fmt.Fprintln(w, "|------|--------|------:|--------:|--------:|---------:|")
	for _, r := range s.Rows {
		fmt.Fprintf(w, "| %s | %s | %d | %.1f | %.0f | %.4f |\n",
			r.TaskID, r.Status, r.Iterations, r.BestRuntimeMS, r.BestMemoryMB, r.CostUSD)
	}
	fmt.Fprintf(w, "\n%d/%d succeeded, mean %.1f iterations.\n", s.Succeeded, s.Tasks, s.MeanIters)
	return nil
}
