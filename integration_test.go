//go:build integration

package main

import (
	"context"
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

const linearProgram = `#include <cstdio>
int main() {
    long long n = 0;
    if (std::scanf("%lld", &n) != 1) return 0;
    volatile long long sum = 0;
    for (long long i = 0; i < n; i++) sum += i;
    std::printf("%lld\n", (long long)sum);
    return 0;
}
`

const brokenProgram = `int main() { return 0 }
`

func integrationRunner(t *testing.T) *sandbox.Runner {
	t.Helper()
	if os.Getenv("SCALEBENCH_DOCKER_TESTS") != "1" {
		t.Skip("set SCALEBENCH_DOCKER_TESTS=1 to run integration tests")
	}
	limits := config.Sandbox{
		Image:             "gcc:13",
		TimeoutSec:        2,
		CompileTimeoutSec: 60,
		MemoryMB:          512,
		StackMB:           256,
		PidsLimit:         64,
	}
	r, err := sandbox.NewRunner(limits, zap.NewNop())
	if err != nil {
		t.Fatalf("creating runner: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestProfileLinearProgramIntegration(t *testing.T) {
	r := integrationRunner(t)

	scales := config.Scales{Corner: []int{0, 1}, Ladder: []int{1_000, 100_000}}
	profiler := profile.New(r, telemetry.GNUTime{}, scales, zap.NewNop())

	code := schema.CodeMessage{
		TaskID:        "integration-linear",
		Source:        linearProgram,
		CompileFlags:  sandbox.CompileFlags,
		SchemaVersion: schema.SchemaVersion,
	}
	report, err := profiler.Profile(context.Background(), code, 100_000, false)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if err := report.Validate(); err != nil {
		t.Fatalf("report invalid: %v", err)
	}
	if len(report.InputSizes) != 4 {
		t.Fatalf("profiled %d scales, want 4", len(report.InputSizes))
	}
	for i := range report.InputSizes {
		if report.Failed(i) {
			t.Errorf("scale %d failed unexpectedly", report.InputSizes[i])
		}
	}
}

func TestCompileErrorIntegration(t *testing.T) {
	r := integrationRunner(t)

	_, err := r.Build(context.Background(), brokenProgram)
	if err == nil {
		t.Fatal("broken program built successfully")
	}
	if _, ok := err.(*sandbox.CompileError); !ok {
		t.Errorf("error = %T, want *sandbox.CompileError", err)
	}
}

func TestInfiniteLoopTimesOutIntegration(t *testing.T) {
	r := integrationRunner(t)

	art, err := r.Build(context.Background(), `int main() { for (;;) {} }`)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer art.Remove()

	outcome, err := r.Execute(context.Background(), art, scale.Spec{N: 1_000, Payload: scale.DefaultPayload(1_000)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Kind != sandbox.TimedOut {
		t.Errorf("Kind = %s, want timed_out", outcome.Kind)
	}
}
