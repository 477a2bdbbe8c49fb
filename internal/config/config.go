package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Sandbox Sandbox `yaml:"sandbox"`
	Scales  Scales  `yaml:"scales"`
	Loop    Loop    `yaml:"loop"`
	Models  Models  `yaml:"models"`
	Results Results `yaml:"results"`
	Pricing Pricing `yaml:"pricing"`
}

// Sandbox holds the resource caps applied to every build and every run.
type Sandbox struct {
	Image             string `yaml:"image"`
	TimeoutSec        int    `yaml:"timeout_sec"`
	CompileTimeoutSec int    `yaml:"compile_timeout_sec"`
	MemoryMB          int64  `yaml:"memory_mb"`
	StackMB           int64  `yaml:"stack_mb"`
	PidsLimit         int64  `yaml:"pids_limit"`
	MaxConcurrent     int64  `yaml:"max_concurrent"`
}

// Scales declares the measurement ladder. Corner scales always run first,
// in the order given; ladder values above a task's declared bound are
// dropped at generation time.
type Scales struct {
	Corner []int `yaml:"corner"`
	Ladder []int `yaml:"ladder"`
}

type Loop struct {
	MaxIterations   int     `yaml:"max_iterations"`
	AgentFailureCap int     `yaml:"agent_failure_cap"`
	Epsilon         float64 `yaml:"epsilon"`
}

type Models struct {
	Planner string `yaml:"planner"`
	Coder   string `yaml:"coder"`
}

type Results struct {
	Dir string `yaml:"dir"`
}

type Pricing struct {
	Table string `yaml:"table"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Sandbox.Image == "" {
		cfg.Sandbox.Image = "gcc:13"
	}
	if cfg.Sandbox.TimeoutSec == 0 {
		cfg.Sandbox.TimeoutSec = 2
	}
	if cfg.Sandbox.TimeoutSec < 0 {
		return fmt.Errorf("sandbox timeout_sec must be positive")
	}
	if cfg.Sandbox.CompileTimeoutSec == 0 {
		cfg.Sandbox.CompileTimeoutSec = 60
	}
	if cfg.Sandbox.MemoryMB == 0 {
		cfg.Sandbox.MemoryMB = 512
	}
	if cfg.Sandbox.StackMB == 0 {
		cfg.Sandbox.StackMB = 256
	}
	if cfg.Sandbox.PidsLimit == 0 {
		cfg.Sandbox.PidsLimit = 64
	}
	if cfg.Sandbox.MaxConcurrent == 0 {
		cfg.Sandbox.MaxConcurrent = 4
	}
	if cfg.Scales.Corner == nil {
		cfg.Scales.Corner = []int{0, 1}
	}
	if len(cfg.Scales.Ladder) == 0 {
		cfg.Scales.Ladder = []int{1_000, 5_000, 10_000, 50_000, 100_000}
	}
	for i, s := range cfg.Scales.Ladder {
		if s < 0 {
			return fmt.Errorf("scale ladder values must be non-negative")
		}
		if i > 0 && s <= cfg.Scales.Ladder[i-1] {
			return fmt.Errorf("scale ladder must be strictly ascending")
		}
	}
	if cfg.Loop.MaxIterations == 0 {
		cfg.Loop.MaxIterations = 3
	}
	if cfg.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop max_iterations must be at least 1")
	}
	if cfg.Loop.AgentFailureCap == 0 {
		cfg.Loop.AgentFailureCap = 2
	}
	if cfg.Loop.Epsilon == 0 {
		cfg.Loop.Epsilon = 0.05
	}
	if cfg.Loop.Epsilon < 0 || cfg.Loop.Epsilon >= 1 {
		return fmt.Errorf("loop epsilon must be in [0, 1)")
	}
	if cfg.Models.Planner == "" {
		cfg.Models.Planner = "gemini-2.0-flash"
	}
	if cfg.Models.Coder == "" {
		cfg.Models.Coder = "gpt-4o"
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	return nil
}
