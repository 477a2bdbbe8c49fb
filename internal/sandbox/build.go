package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/moby/api/types/mount"
	"go.uber.org/zap"
)

// Artifact is a compiled executable plus the flags that produced it. It is
// exclusively owned by the profiling request that built it and must be
// removed once that request's report is finalized.
type Artifact struct {
	Dir   string
	Bin   string
	Flags []string
}

// Remove deletes the artifact and its scratch area.
func (a *Artifact) Remove() error {
	return os.RemoveAll(a.Dir)
}

// CompileError is terminal for a profiling request: the source failed to
// build twice with identical flags.
type CompileError struct {
	Diagnostic string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compilation failed: %s", e.Diagnostic)
}

// Build compiles source with the fixed flag set inside a network-less
// container with a bounded wall clock. On failure it re-attempts exactly
// once, verbatim, then surfaces a CompileError.
func (r *Runner) Build(ctx context.Context, source string) (*Artifact, error) {
	return r.build(ctx, source, CompileFlags)
}

func (r *Runner) build(ctx context.Context, source string, flags []string) (*Artifact, error) {
	dir, err := scratchDir("scalebench-")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "main.cpp"), []byte(source), 0o644); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("writing source: %w", err)
	}

	var diag string
	for attempt := 1; attempt <= 2; attempt++ {
		diag, err = r.compileOnce(ctx, dir, flags)
		if err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
		if diag == "" {
			return &Artifact{
				Dir:   dir,
				Bin:   filepath.Join(dir, "prog"),
				Flags: flags,
			}, nil
		}
		r.log.Warn("compile attempt failed",
			zap.Int("attempt", attempt),
			zap.String("diagnostic", firstLine(diag)))
	}
	os.RemoveAll(dir)
	return nil, &CompileError{Diagnostic: diag}
}

// compileOnce runs one bounded build. A non-empty diagnostic means the
// compiler rejected the source; a non-nil error means the sandbox itself
// failed.
func (r *Runner) compileOnce(ctx context.Context, dir string, flags []string) (string, error) {
	cmd := fmt.Sprintf("g++ %s /scratch/main.cpp -o /scratch/prog 2> /scratch/compile.log",
		strings.Join(flags, " "))
	res, err := r.runContainer(ctx, containerSpec{
		cmd:     []string{"sh", "-c", cmd},
		mounts:  []mount.Mount{bindMount(dir, "/scratch", false)},
		timeout: time.Duration(r.limits.CompileTimeoutSec) * time.Second,
	})
	if err != nil {
		return "", fmt.Errorf("running build container: %w", err)
	}
	if res.timedOut {
		return fmt.Sprintf("build exceeded %ds wall clock", r.limits.CompileTimeoutSec), nil
	}
	if res.exitCode != 0 {
		log, _ := os.ReadFile(filepath.Join(dir, "compile.log"))
		if len(log) == 0 {
			return fmt.Sprintf("compiler exited with status %d", res.exitCode), nil
		}
		return string(log), nil
	}
	return "", nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
