package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/moby/moby/api/types/mount"
)

// maxHotspots bounds the entries reported from the flat profile.
const maxHotspots = 10

// Hotspots compiles an instrumented copy of the source, runs it once
// against the given payload, and maps function names to cumulative-time
// percentages from the gprof flat profile. The instrumented binary is
// built and discarded here; it never feeds timing measurements.
func (r *Runner) Hotspots(ctx context.Context, source string, payload []byte) (map[string]float64, error) {
	art, err := r.build(ctx, source, profileFlags)
	if err != nil {
		return nil, fmt.Errorf("instrumented build: %w", err)
	}
	defer art.Remove()

	if err := os.WriteFile(filepath.Join(art.Dir, "input.txt"), payload, 0o644); err != nil {
		return nil, fmt.Errorf("writing payload: %w", err)
	}

	cmd := "/scratch/prog < /scratch/input.txt > /dev/null 2>&1 && " +
		"gprof -b -p /scratch/prog /scratch/gmon.out > /scratch/gprof.txt"
	res, err := r.runContainer(ctx, containerSpec{
		cmd:     []string{"sh", "-c", cmd},
		mounts:  []mount.Mount{bindMount(art.Dir, "/scratch", false)},
		timeout: time.Duration(r.limits.CompileTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if res.timedOut || res.exitCode != 0 {
		return nil, fmt.Errorf("profiling run failed (exit %d)", res.exitCode)
	}

	raw, err := os.ReadFile(filepath.Join(art.Dir, "gprof.txt"))
	if err != nil {
		return nil, fmt.Errorf("reading gprof output: %w", err)
	}
	return ParseFlatProfile(string(raw)), nil
}

// ParseFlatProfile extracts "% time" per function from a gprof flat
// profile. Unparseable lines are skipped; an empty map is a valid result.
func ParseFlatProfile(raw string) map[string]float64 {
	hotspots := make(map[string]float64)
	inTable := false
	for _, line := range strings.Split(raw, "\n") {
		if strings.Contains(line, "cumulative") && strings.Contains(line, "self") {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pct, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		name := fields[len(fields)-1]
		if len(fields) >= 7 {
			// Name column may contain spaces (template args); rejoin it.
			name = strings.Join(fields[6:], " ")
		}
		hotspots[name] = pct
		if len(hotspots) >= maxHotspots {
			break
		}
	}
	return hotspots
}
