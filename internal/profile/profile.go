// Package profile drives one profiling request: build once, execute per
// scale, and assemble the outcomes into a validated report.
package profile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scalebench/internal/config"
	"scalebench/internal/sandbox"
	"scalebench/internal/scale"
	"scalebench/internal/schema"
	"scalebench/internal/telemetry"
)

// Executor is the sandbox seam: build an artifact, run it against one
// scale, optionally collect a hotspot profile.
type Executor interface {
	Build(ctx context.Context, source string) (*sandbox.Artifact, error)
	Execute(ctx context.Context, art *sandbox.Artifact, sc scale.Spec) (sandbox.Outcome, error)
	Hotspots(ctx context.Context, source string, payload []byte) (map[string]float64, error)
}

// AssemblyError is a fatal invariant violation: the assembled sequences do
// not match the requested scale count. It signals an engine bug, not a
// measured outcome.
type AssemblyError struct {
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("report assembly: %v", e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

type Profiler struct {
	exec    Executor
	extract telemetry.Extractor
	scales  config.Scales
	payload scale.PayloadFunc
	log     *zap.Logger
}

func New(exec Executor, extract telemetry.Extractor, scales config.Scales, logger *zap.Logger) *Profiler {
	return &Profiler{
		exec:    exec,
		extract: extract,
		scales:  scales,
		payload: scale.DefaultPayload,
		log:     logger.Named("profiler"),
	}
}

// SetPayload installs a task-shape-specific payload generator.
func (p *Profiler) SetPayload(fn scale.PayloadFunc) {
	if fn != nil {
		p.payload = fn
	}
}

// Profile measures one code candidate across the scale ladder bounded by
// nMax. Per-scale failures become sentinels and never abort the remaining
// scales; compile, parse, and assembly failures abort the whole request.
// The artifact and its scratch area are deleted before return, success or
// failure.
func (p *Profiler) Profile(ctx context.Context, code schema.CodeMessage, nMax int, debug bool) (*schema.ProfileReport, error) {
	specs := scale.Generate(p.scales.Corner, p.scales.Ladder, nMax, p.payload)

	art, err := p.exec.Build(ctx, code.Source)
	if err != nil {
		return nil, err
	}
	defer art.Remove()

	report := &schema.ProfileReport{
		TaskID:        code.TaskID,
		Iteration:     code.Iteration,
		InputSizes:    scale.Sizes(specs),
		RuntimeMS:     make(schema.MetricSeries, 0, len(specs)),
		PeakMemoryMB:  make(schema.MetricSeries, 0, len(specs)),
		Hotspots:      map[string]float64{},
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schema.SchemaVersion,
	}

	// Scales run strictly one at a time so co-resident work never
	// contaminates the measurements.
	for _, sc := range specs {
		outcome, err := p.exec.Execute(ctx, art, sc)
		if err != nil {
			return nil, fmt.Errorf("executing scale %d: %w", sc.N, err)
		}
		switch outcome.Kind {
		case sandbox.Completed:
			m, err := p.extract.Extract(outcome.Measurement)
			if err != nil {
				return nil, fmt.Errorf("scale %d: %w", sc.N, err)
			}
			report.RuntimeMS = append(report.RuntimeMS, m.RuntimeMS)
			report.PeakMemoryMB = append(report.PeakMemoryMB, m.PeakMemoryMB)
		case sandbox.TimedOut:
			p.log.Warn("scale timed out", zap.String("task", code.TaskID), zap.Int("n", sc.N))
			report.RuntimeMS = append(report.RuntimeMS, schema.FailureSentinel)
			report.PeakMemoryMB = append(report.PeakMemoryMB, schema.FailureSentinel)
		case sandbox.Crashed:
			p.log.Warn("scale crashed",
				zap.String("task", code.TaskID),
				zap.Int("n", sc.N),
				zap.String("reason", outcome.Reason))
			report.RuntimeMS = append(report.RuntimeMS, schema.FailureSentinel)
			report.PeakMemoryMB = append(report.PeakMemoryMB, schema.FailureSentinel)
		default:
			return nil, &AssemblyError{Err: fmt.Errorf("scale %d: unknown outcome kind %v", sc.N, outcome.Kind)}
		}
	}

	if err := report.Validate(); err != nil {
		return nil, &AssemblyError{Err: err}
	}

	if debug {
		report.Hotspots = p.collectHotspots(ctx, code.Source, specs, report)
	}
	return report, nil
}

// collectHotspots runs the out-of-band gprof pass once, against the largest
// scale that completed. Failure degrades to an empty mapping and never
// blocks report assembly.
func (p *Profiler) collectHotspots(ctx context.Context, source string, specs []scale.Spec, report *schema.ProfileReport) map[string]float64 {
	for i := len(specs) - 1; i >= 0; i-- {
		if report.Failed(i) {
			continue
		}
		hotspots, err := p.exec.Hotspots(ctx, source, specs[i].Payload)
		if err != nil {
			p.log.Warn("hotspot pass failed", zap.Int("n", specs[i].N), zap.Error(err))
			return map[string]float64{}
		}
		return hotspots
	}
	return map[string]float64{}
}
