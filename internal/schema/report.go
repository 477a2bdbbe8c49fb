package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// FailureSentinel marks a scale whose run timed out or crashed. Reports keep
// one entry per requested scale, so failures are encoded, never omitted.
var FailureSentinel = math.Inf(1)

// MetricSeries is a float sequence that survives JSON round-trips when it
// contains the +Inf failure sentinel (encoded as the string "Infinity").
type MetricSeries []float64

func (m MetricSeries) MarshalJSON() ([]byte, error) {
	out := make([]any, len(m))
	for i, v := range m {
		if math.IsInf(v, 1) {
			out[i] = "Infinity"
		} else {
			out[i] = v
		}
	}
	return json.Marshal(out)
}

func (m *MetricSeries) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	vals := make([]float64, len(raw))
	for i, v := range raw {
		switch x := v.(type) {
		case float64:
			vals[i] = x
		case string:
			if x != "Infinity" {
				return fmt.Errorf("metric series: unexpected value %q", x)
			}
			vals[i] = math.Inf(1)
		default:
			return fmt.Errorf("metric series: unexpected type %T", v)
		}
	}
	*m = vals
	return nil
}

// ProfileReport is one iteration's measurement across all requested scales.
// The three parallel sequences are index-aligned and always the same length
// as the requested scale list, in request order.
type ProfileReport struct {
	TaskID        string             `json:"task_id"`
	Iteration     int                `json:"iteration"`
	InputSizes    []int              `json:"input_sizes"`
	RuntimeMS     MetricSeries       `json:"runtime_ms"`
	PeakMemoryMB  MetricSeries       `json:"peak_memory_mb"`
	Hotspots      map[string]float64 `json:"hotspots"`
	Timestamp     time.Time          `json:"timestamp"`
	SchemaVersion string             `json:"schema_version"`
}

func (r *ProfileReport) Validate() error {
	if r.TaskID == "" {
		return fmt.Errorf("profile report: task_id is required")
	}
	n := len(r.InputSizes)
	if len(r.RuntimeMS) != n || len(r.PeakMemoryMB) != n {
		return fmt.Errorf("profile report %s: sequence lengths diverge (sizes=%d runtime=%d memory=%d)",
			r.TaskID, n, len(r.RuntimeMS), len(r.PeakMemoryMB))
	}
	return nil
}

// Failed reports whether the scale at index i carries the failure sentinel.
func (r *ProfileReport) Failed(i int) bool {
	return math.IsInf(r.RuntimeMS[i], 1)
}

// LargestScaleRuntime returns the runtime at the largest requested scale.
// This is the figure the diminishing-returns check compares across
// iterations. Returns the sentinel when that scale failed.
func (r *ProfileReport) LargestScaleRuntime() float64 {
	if len(r.RuntimeMS) == 0 {
		return FailureSentinel
	}
	return r.RuntimeMS[len(r.RuntimeMS)-1]
}
