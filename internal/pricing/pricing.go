// Package pricing estimates collaborator spend from token usage.
package pricing

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ModelPricing holds USD per 1K tokens.
type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

type Table struct {
	Providers map[string]map[string]ModelPricing
}

// defaultTable covers the models the default config names, so cost
// estimates work without a pricing file.
var defaultTable = map[string]map[string]ModelPricing{
	"openai": {
		"gpt-4o":      {Input: 0.0025, Output: 0.01},
		"gpt-4o-mini": {Input: 0.00015, Output: 0.0006},
	},
	"google": {
		"gemini-2.0-flash": {Input: 0.0001, Output: 0.0004},
	},
}

// Load reads a pricing table. An empty path yields the built-in defaults.
func Load(path string) (*Table, error) {
	if path == "" {
		return &Table{Providers: defaultTable}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}
	var providers map[string]map[string]ModelPricing
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("parsing pricing file: %w", err)
	}
	return &Table{Providers: providers}, nil
}

// Cost calculates the cost of one request. Unknown models cost zero.
func (t *Table) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	models, ok := t.Providers[provider]
	if !ok {
		return 0
	}
	p, ok := models[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1000.0)*p.Input + (float64(outputTokens)/1000.0)*p.Output
}

// Meter accumulates token usage and estimated cost across collaborator
// calls. Safe for concurrent use.
type Meter struct {
	mu     sync.Mutex
	table  *Table
	tokens int
	cost   float64
}

func NewMeter(table *Table) *Meter {
	return &Meter{table: table}
}

func (m *Meter) Record(provider, model string, inputTokens, outputTokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens += inputTokens + outputTokens
	m.cost += m.table.Cost(provider, model, inputTokens, outputTokens)
}

func (m *Meter) Total() (tokens int, costUSD float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens, m.cost
}
