package pricing_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"scalebench/internal/pricing"
)

func TestDefaultTableCost(t *testing.T) {
	table, err := pricing.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := table.Cost("openai", "gpt-4o", 1000, 1000)
	if math.Abs(got-0.0125) > 1e-9 {
		t.Errorf("Cost(gpt-4o, 1000, 1000) = %v, want 0.0125", got)
	}
	if table.Cost("openai", "unknown-model", 1000, 1000) != 0 {
		t.Error("unknown model should cost zero")
	}
	if table.Cost("unknown-provider", "gpt-4o", 1000, 1000) != 0 {
		t.Error("unknown provider should cost zero")
	}
}

func TestLoadCustomTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	data := "openai:\n  gpt-4o:\n    input: 0.001\n    output: 0.002\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := pricing.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := table.Cost("openai", "gpt-4o", 2000, 1000)
	if math.Abs(got-0.004) > 1e-9 {
		t.Errorf("Cost = %v, want 0.004", got)
	}
}

func TestMeterAccumulates(t *testing.T) {
	table, err := pricing.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	meter := pricing.NewMeter(table)
	meter.Record("openai", "gpt-4o", 1000, 1000)
	meter.Record("google", "gemini-2.0-flash", 10_000, 0)

	tokens, cost := meter.Total()
	if tokens != 12_000 {
		t.Errorf("tokens = %d, want 12000", tokens)
	}
	if math.Abs(cost-0.0135) > 1e-9 {
		t.Errorf("cost = %v, want 0.0135", cost)
	}
}
