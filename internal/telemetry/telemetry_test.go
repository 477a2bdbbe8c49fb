package telemetry_test

import (
	"errors"
	"testing"

	"scalebench/internal/telemetry"
)

const fullOutput = `	Command being timed: "/sandbox/prog"
	User time (seconds): 1.10
	System time (seconds): 0.08
	Percent of CPU this job got: 96%
	Elapsed (wall clock) time (h:mm:ss or m:ss): 0:01.23
	Average shared text size (kbytes): 0
	Maximum resident set size (kbytes): 20480
	Voluntary context switches: 12
	Exit status: 0`

func TestGNUTimeExtract(t *testing.T) {
	m, err := telemetry.GNUTime{}.Extract(fullOutput)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if m.RuntimeMS != 1230.0 {
		t.Errorf("RuntimeMS = %v, want 1230.0", m.RuntimeMS)
	}
	if m.PeakMemoryMB != 20.0 {
		t.Errorf("PeakMemoryMB = %v, want 20.0", m.PeakMemoryMB)
	}
}

func TestGNUTimeExtractHours(t *testing.T) {
	raw := `	Elapsed (wall clock) time (h:mm:ss or m:ss): 1:02:03
	Maximum resident set size (kbytes): 1024`
	m, err := telemetry.GNUTime{}.Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := (1*3600 + 2*60 + 3) * 1000.0
	if m.RuntimeMS != want {
		t.Errorf("RuntimeMS = %v, want %v", m.RuntimeMS, want)
	}
	if m.PeakMemoryMB != 1.0 {
		t.Errorf("PeakMemoryMB = %v, want 1.0", m.PeakMemoryMB)
	}
}

func TestGNUTimeExtractFloorsMemory(t *testing.T) {
	raw := `	Elapsed (wall clock) time (h:mm:ss or m:ss): 0:00.10
	Maximum resident set size (kbytes): 2047`
	m, err := telemetry.GNUTime{}.Extract(raw)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if m.PeakMemoryMB != 1.0 {
		t.Errorf("PeakMemoryMB = %v, want 1.0 (floored)", m.PeakMemoryMB)
	}
}

func TestGNUTimeExtractMissingFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no elapsed", "Maximum resident set size (kbytes): 20480"},
		{"no rss", "Elapsed (wall clock) time (h:mm:ss or m:ss): 0:01.23"},
		{"garbage", "segmentation fault (core dumped)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := telemetry.GNUTime{}.Extract(tt.raw)
			if err == nil {
				t.Fatalf("Extract succeeded with %+v, want ParseError", m)
			}
			var pe *telemetry.ParseError
			if !errors.As(err, &pe) {
				t.Errorf("error type = %T, want *ParseError", err)
			}
			if m.RuntimeMS != 0 || m.PeakMemoryMB != 0 {
				t.Errorf("partial measurement leaked: %+v", m)
			}
		})
	}
}
