// Package sandbox compiles untrusted source into an owned artifact and
// executes it under hard resource limits, one isolated container per run.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
	"go.uber.org/zap"

	"scalebench/internal/config"
)

// CompileFlags is the fixed flag set for measured builds: one optimization
// level, one language standard, never varied at runtime.
var CompileFlags = []string{"-O3", "-std=c++17"}

// profileFlags instruments the hotspot build. Never used for timing runs.
var profileFlags = []string{"-O3", "-std=c++17", "-pg", "-g"}

type Runner struct {
	cli    *client.Client
	image  string
	limits config.Sandbox
	log    *zap.Logger
}

func NewRunner(limits config.Sandbox, logger *zap.Logger) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &Runner{
		cli:    cli,
		image:  limits.Image,
		limits: limits,
		log:    logger.Named("sandbox"),
	}, nil
}

func (r *Runner) Close() error {
	return r.cli.Close()
}

// containerSpec describes one bounded, isolated container run. Every run
// gets network "none" and a fresh container; writable paths are limited to
// the bind-mounted scratch area and a small tmpfs.
type containerSpec struct {
	cmd          []string
	mounts       []mount.Mount
	timeout      time.Duration
	readonlyRoot bool
}

type containerResult struct {
	exitCode int
	timedOut bool
	duration time.Duration
}

func (r *Runner) runContainer(ctx context.Context, spec containerSpec) (*containerResult, error) {
	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts:         spec.mounts,
		Init:           &initTrue,
		NetworkMode:    container.NetworkMode("none"),
		ReadonlyRootfs: spec.readonlyRoot,
		Tmpfs:          map[string]string{"/tmp": "rw,size=64m"},
	}
	hostCfg.Memory = r.limits.MemoryMB * 1024 * 1024
	// Same swap total as memory: the process is killed at the ceiling
	// instead of silently swapping.
	hostCfg.MemorySwap = hostCfg.Memory
	pids := r.limits.PidsLimit
	hostCfg.PidsLimit = &pids
	stackBytes := r.limits.StackMB * 1024 * 1024
	hostCfg.Ulimits = []*container.Ulimit{
		{Name: "stack", Soft: stackBytes, Hard: stackBytes},
	}

	containerCfg := &container.Config{
		Image:      r.image,
		Cmd:        spec.cmd,
		WorkingDir: "/scratch",
		Labels:     map[string]string{"scalebench": "true"},
	}

	createResp, err := r.cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		r.cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := r.cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, spec.timeout)
	defer cancel()

	waitResult := r.cli.ContainerWait(timeoutCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	errCh := waitResult.Error
	for {
		select {
		case err, ok := <-errCh:
			if !ok || err == nil {
				// A closed or empty error channel says nothing about the
				// run; keep waiting for the result.
				errCh = nil
				continue
			}
			if waitTimedOut(ctx, timeoutCtx) {
				// Killing the container tears down its entire process
				// tree, so nothing keeps running past the deadline.
				r.cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
				return &containerResult{
					exitCode: 124,
					timedOut: true,
					duration: time.Since(start),
				}, nil
			}
			return nil, fmt.Errorf("waiting for container: %w", err)
		case status := <-waitResult.Result:
			return &containerResult{
				exitCode: int(status.StatusCode),
				timedOut: false,
				duration: time.Since(start),
			}, nil
		}
	}
}

// waitTimedOut distinguishes the run's own wall-clock deadline from caller
// cancellation and daemon failures. Only the former counts as a timeout;
// everything else is an infrastructure error and must surface as one.
func waitTimedOut(parent, bounded context.Context) bool {
	return parent.Err() == nil && bounded.Err() != nil
}

// scratchDir creates an exclusively owned scratch area.
func scratchDir(prefix string) (string, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	return dir, nil
}

func bindMount(src, dst string, readOnly bool) mount.Mount {
	return mount.Mount{
		Type:     mount.TypeBind,
		Source:   src,
		Target:   dst,
		ReadOnly: readOnly,
	}
}
