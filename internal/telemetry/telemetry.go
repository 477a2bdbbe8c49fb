// Package telemetry extracts structured runtime and memory figures from the
// raw diagnostic stream of a measured run. The extraction sits behind a
// narrow interface so the measurement format can change without touching
// the aggregator or the controller.
package telemetry

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Measurement is the structured result of one successfully measured run.
type Measurement struct {
	RuntimeMS    float64
	PeakMemoryMB float64
}

// ParseError means the measurement harness itself misbehaved: a required
// field was absent from the diagnostic stream. It is distinct from a
// process crash and must never degrade to a zero or default value.
type ParseError struct {
	Field string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("measurement output missing %s field", e.Field)
}

// Extractor converts one run's raw diagnostic text into a Measurement.
type Extractor interface {
	Extract(raw string) (Measurement, error)
}

// GNUTime parses the verbose output of GNU time (`time -v`).
type GNUTime struct{}

var (
	// Matches `Elapsed (wall clock) time (h:mm:ss or m:ss): 0:01.23`
	// in both the m:ss.ff and h:mm:ss forms.
	elapsedRe = regexp.MustCompile(`Elapsed \(wall clock\) time[^:]*:\s*(?:(\d+):)?(\d+):(\d+(?:\.\d+)?)`)
	rssRe     = regexp.MustCompile(`Maximum resident set size \(kbytes\):\s*(\d+)`)
)

func (GNUTime) Extract(raw string) (Measurement, error) {
	em := elapsedRe.FindStringSubmatch(raw)
	if em == nil {
		return Measurement{}, &ParseError{Field: "elapsed wall clock time"}
	}
	rm := rssRe.FindStringSubmatch(raw)
	if rm == nil {
		return Measurement{}, &ParseError{Field: "maximum resident set size"}
	}

	var hours float64
	if em[1] != "" {
		hours, _ = strconv.ParseFloat(em[1], 64)
	}
	minutes, _ := strconv.ParseFloat(em[2], 64)
	seconds, err := strconv.ParseFloat(em[3], 64)
	if err != nil {
		return Measurement{}, &ParseError{Field: "elapsed wall clock time"}
	}

	kbytes, err := strconv.ParseFloat(rm[1], 64)
	if err != nil {
		return Measurement{}, &ParseError{Field: "maximum resident set size"}
	}

	return Measurement{
		RuntimeMS:    (hours*3600 + minutes*60 + seconds) * 1000,
		PeakMemoryMB: math.Floor(kbytes / 1024),
	}, nil
}
