package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/moby/api/types/mount"
	"go.uber.org/zap"

	"scalebench/internal/scale"
)

type OutcomeKind int

const (
	Completed OutcomeKind = iota
	TimedOut
	Crashed
)

func (k OutcomeKind) String() string {
	switch k {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	case Crashed:
		return "crashed"
	}
	return "unknown"
}

// Outcome is the single result of executing one artifact against one scale.
// Measurement holds the raw diagnostic text of the measurement utility and
// is only populated for Completed runs.
type Outcome struct {
	Kind        OutcomeKind
	Measurement string
	Reason      string
	Duration    time.Duration
}

var signalNames = map[int]string{
	132: "SIGILL",
	133: "SIGTRAP",
	134: "SIGABRT",
	135: "SIGBUS",
	136: "SIGFPE",
	137: "SIGKILL",
	139: "SIGSEGV",
	141: "SIGPIPE",
	152: "SIGXCPU",
	153: "SIGXFSZ",
}

// CrashReason renders a non-zero exit status as the signal name when the
// status encodes one, otherwise as the bare exit code.
func CrashReason(exitCode int) string {
	if name, ok := signalNames[exitCode]; ok {
		return name
	}
	return fmt.Sprintf("exit status %d", exitCode)
}

// Execute runs the artifact once against one scale in a fresh isolated
// container and classifies the result. It never retries; a returned error
// means the sandbox infrastructure itself failed, not the measured program.
func (r *Runner) Execute(ctx context.Context, art *Artifact, sc scale.Spec) (Outcome, error) {
	// Fresh per-invocation scratch area: no state survives from one
	// scale's run to the next, even for the same artifact.
	runDir, err := os.MkdirTemp(art.Dir, "run-")
	if err != nil {
		return Outcome{}, fmt.Errorf("creating run dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "input.txt"), sc.Payload, 0o644); err != nil {
		return Outcome{}, fmt.Errorf("writing payload: %w", err)
	}

	// The program's stdout, its stderr, and the measurement stream land in
	// three separate files so they can never interleave.
	cmd := "/usr/bin/time -v -o /scratch/measure.txt /sandbox/prog " +
		"< /scratch/input.txt > /scratch/stdout.txt 2> /scratch/stderr.txt"
	res, err := r.runContainer(ctx, containerSpec{
		cmd: []string{"sh", "-c", cmd},
		mounts: []mount.Mount{
			bindMount(art.Dir, "/sandbox", true),
			bindMount(runDir, "/scratch", false),
		},
		timeout:      time.Duration(r.limits.TimeoutSec) * time.Second,
		readonlyRoot: true,
	})
	if err != nil {
		return Outcome{}, err
	}

	r.log.Debug("scale executed",
		zap.Int("n", sc.N),
		zap.Int("exit_code", res.exitCode),
		zap.Bool("timed_out", res.timedOut),
		zap.Duration("duration", res.duration))

	outcome, err := classifyRun(res, r.image)
	if err != nil || outcome.Kind != Completed {
		return outcome, err
	}

	raw, err := os.ReadFile(filepath.Join(runDir, "measure.txt"))
	if err != nil {
		return Outcome{}, fmt.Errorf("reading measurement stream: %w", err)
	}
	outcome.Measurement = string(raw)
	return outcome, nil
}

// classifyRun maps a finished container onto an outcome. Exit 127 means the
// shell never found the measurement wrapper: an image problem, not a crash
// of the measured program.
func classifyRun(res *containerResult, image string) (Outcome, error) {
	switch {
	case res.timedOut:
		return Outcome{Kind: TimedOut, Duration: res.duration}, nil
	case res.exitCode == 127:
		return Outcome{}, fmt.Errorf("/usr/bin/time not found in image %s: use an image that ships GNU time", image)
	case res.exitCode != 0:
		return Outcome{
			Kind:     Crashed,
			Reason:   CrashReason(res.exitCode),
			Duration: res.duration,
		}, nil
	}
	return Outcome{Kind: Completed, Duration: res.duration}, nil
}
