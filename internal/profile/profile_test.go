package profile_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"

	"go.uber.org/zap"

	"scalebench/internal/config"
	"scalebench/internal/profile"
	"scalebench/internal/sandbox"
	"scalebench/internal/scale"
	"scalebench/internal/schema"
	"scalebench/internal/telemetry"
)

var testScales = config.Scales{
	Corner: []int{0, 1},
	Ladder: []int{1_000, 100_000},
}

// fakeExtractor reads "rt mem" pairs so tests control measurements directly.
type fakeExtractor struct{}

func (fakeExtractor) Extract(raw string) (telemetry.Measurement, error) {
	var m telemetry.Measurement
	if _, err := fmt.Sscanf(raw, "%f %f", &m.RuntimeMS, &m.PeakMemoryMB); err != nil {
		return telemetry.Measurement{}, &telemetry.ParseError{Field: "elapsed wall clock time"}
	}
	return m, nil
}

type fakeExecutor struct {
	buildErr    error
	outcomes    map[int]sandbox.Outcome
	hotspots    map[string]float64
	hotspotErr  error
	executed    []int
	hotspotRuns [][]byte
	artifactDir string
}

func (f *fakeExecutor) Build(ctx context.Context, source string) (*sandbox.Artifact, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	dir, err := os.MkdirTemp("", "fake-artifact-")
	if err != nil {
		return nil, err
	}
	f.artifactDir = dir
	return &sandbox.Artifact{Dir: dir, Bin: dir + "/prog"}, nil
}

func (f *fakeExecutor) Execute(ctx context.Context, art *sandbox.Artifact, sc scale.Spec) (sandbox.Outcome, error) {
	f.executed = append(f.executed, sc.N)
	if out, ok := f.outcomes[sc.N]; ok {
		return out, nil
	}
	return sandbox.Outcome{Kind: sandbox.Completed, Measurement: fmt.Sprintf("%d 4", sc.N+1)}, nil
}

func (f *fakeExecutor) Hotspots(ctx context.Context, source string, payload []byte) (map[string]float64, error) {
	f.hotspotRuns = append(f.hotspotRuns, payload)
	if f.hotspotErr != nil {
		return nil, f.hotspotErr
	}
	return f.hotspots, nil
}

func code() schema.CodeMessage {
	return schema.CodeMessage{
		TaskID:    "task-1",
		Iteration: 2,
		Source:    "int main() { return 0; }\n",
	}
}

func newProfiler(exec *fakeExecutor) *profile.Profiler {
	return profile.New(exec, fakeExtractor{}, testScales, zap.NewNop())
}

func TestProfileAllScalesCompleted(t *testing.T) {
	exec := &fakeExecutor{}
	report, err := newProfiler(exec).Profile(context.Background(), code(), 100_000, false)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}

	wantSizes := []int{0, 1, 1_000, 100_000}
	if fmt.Sprint(report.InputSizes) != fmt.Sprint(wantSizes) {
		t.Errorf("InputSizes = %v, want %v", report.InputSizes, wantSizes)
	}
	if len(report.RuntimeMS) != 4 || len(report.PeakMemoryMB) != 4 {
		t.Fatalf("sequence lengths = %d/%d, want 4/4", len(report.RuntimeMS), len(report.PeakMemoryMB))
	}
	if fmt.Sprint(exec.executed) != fmt.Sprint(wantSizes) {
		t.Errorf("execution order = %v, want %v", exec.executed, wantSizes)
	}
	if report.Iteration != 2 {
		t.Errorf("Iteration = %d, want 2 (carried from the code message)", report.Iteration)
	}
	if len(exec.hotspotRuns) != 0 {
		t.Error("hotspot pass ran without debug mode")
	}
	if report.Hotspots == nil {
		t.Error("Hotspots must be an empty map, not nil")
	}
}

func TestProfileRemovesArtifact(t *testing.T) {
	exec := &fakeExecutor{}
	if _, err := newProfiler(exec).Profile(context.Background(), code(), 1_000, false); err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if _, err := os.Stat(exec.artifactDir); !os.IsNotExist(err) {
		t.Errorf("artifact dir %s survived the profiling request", exec.artifactDir)
	}
}

func TestProfileTimeoutBecomesSentinelAndLaterScalesStillRun(t *testing.T) {
	exec := &fakeExecutor{outcomes: map[int]sandbox.Outcome{
		1_000: {Kind: sandbox.TimedOut},
	}}
	report, err := newProfiler(exec).Profile(context.Background(), code(), 100_000, false)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !report.Failed(2) {
		t.Error("timed-out scale did not carry the failure sentinel")
	}
	if !math.IsInf(float64(report.PeakMemoryMB[2]), 1) {
		t.Error("memory sequence missing the sentinel at the failed scale")
	}
	if report.Failed(3) {
		t.Error("scale after the timeout was not measured")
	}
	if len(exec.executed) != 4 {
		t.Errorf("executed %d scales, want all 4 despite the timeout", len(exec.executed))
	}
}

func TestProfileCrashBecomesSentinel(t *testing.T) {
	exec := &fakeExecutor{outcomes: map[int]sandbox.Outcome{
		100_000: {Kind: sandbox.Crashed, Reason: "SIGSEGV"},
	}}
	report, err := newProfiler(exec).Profile(context.Background(), code(), 100_000, false)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if !report.Failed(3) {
		t.Error("crashed scale did not carry the failure sentinel")
	}
	if report.Failed(0) || report.Failed(1) || report.Failed(2) {
		t.Error("earlier scales contaminated by the crash")
	}
}

func TestProfileCompileErrorPropagates(t *testing.T) {
	exec := &fakeExecutor{buildErr: &sandbox.CompileError{Diagnostic: "main.cpp:1: expected ';'"}}
	_, err := newProfiler(exec).Profile(context.Background(), code(), 100_000, false)
	var ce *sandbox.CompileError
	if !errors.As(err, &ce) {
		t.Errorf("error = %v, want a CompileError", err)
	}
	if len(exec.executed) != 0 {
		t.Error("scales ran despite a failed build")
	}
}

func TestProfileParseErrorAbortsRequest(t *testing.T) {
	exec := &fakeExecutor{outcomes: map[int]sandbox.Outcome{
		1_000: {Kind: sandbox.Completed, Measurement: "not a measurement"},
	}}
	_, err := newProfiler(exec).Profile(context.Background(), code(), 100_000, false)
	var pe *telemetry.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want a ParseError", err)
	}
	if len(exec.executed) != 3 {
		t.Errorf("executed %d scales, want 3 (parse failure aborts the remainder)", len(exec.executed))
	}
}

func TestProfileHotspotsAtLargestCompletedScale(t *testing.T) {
	exec := &fakeExecutor{
		outcomes: map[int]sandbox.Outcome{
			100_000: {Kind: sandbox.TimedOut},
		},
		hotspots: map[string]float64{"solve(int)": 82.5},
	}
	report, err := newProfiler(exec).Profile(context.Background(), code(), 100_000, true)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if report.Hotspots["solve(int)"] != 82.5 {
		t.Errorf("Hotspots = %v", report.Hotspots)
	}
	if len(exec.hotspotRuns) != 1 {
		t.Fatalf("hotspot pass ran %d times, want 1", len(exec.hotspotRuns))
	}
	// The largest scale timed out, so the pass must use the next one down.
	if string(exec.hotspotRuns[0]) != "1000\n" {
		t.Errorf("hotspot payload = %q, want the 1000-scale payload", exec.hotspotRuns[0])
	}
}

func TestProfileHotspotFailureDegradesToEmpty(t *testing.T) {
	exec := &fakeExecutor{hotspotErr: errors.New("gprof produced no output")}
	report, err := newProfiler(exec).Profile(context.Background(), code(), 100_000, true)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if report.Hotspots == nil || len(report.Hotspots) != 0 {
		t.Errorf("Hotspots = %v, want empty map on hotspot failure", report.Hotspots)
	}
}
