// Package result persists per-iteration reports and terminal task outcomes
// as flat JSON under a timestamped run directory.
package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scalebench/internal/schema"
)

// CreateRunDir creates results/runs/<timestamp> and repoints the `latest`
// symlink at it.
func CreateRunDir(baseDir string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runDir := filepath.Join(runsDir, stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// Store writes one run's artifacts. Implements the controller's sink.
type Store struct {
	runDir string
}

func NewStore(runDir string) *Store {
	return &Store{runDir: runDir}
}

func TaskDir(runDir, taskID string) string {
	return filepath.Join(runDir, "tasks", taskID)
}

func (s *Store) SaveReport(report *schema.ProfileReport) error {
	dir := TaskDir(s.runDir, report.TaskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating task dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	name := fmt.Sprintf("profile-%d.json", report.Iteration)
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func (s *Store) SaveOutcome(outcome *schema.TaskOutcome) error {
	dir := TaskDir(s.runDir, outcome.TaskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating task dir: %w", err)
	}
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling outcome: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "outcome.json"), data, 0o644)
}

func ReadOutcome(path string) (*schema.TaskOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading outcome: %w", err)
	}
	var outcome schema.TaskOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("parsing outcome: %w", err)
	}
	return &outcome, nil
}

func ReadReport(path string) (*schema.ProfileReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var report schema.ProfileReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &report, nil
}
