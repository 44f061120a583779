// ABOUTME: YAML project configuration: budget, provider/model, concurrency, retry policy, stage table.
// ABOUTME: Load applies defaults and validation; Definitions produces the orchestrator's stage list.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389-research/tome/pipeline"
)

const (
	// DefaultThreshold is the gate threshold used when a stage does not
	// override a metric.
	DefaultThreshold = 0.85

	defaultMaxSceneConcurrency = 4
	defaultRetryPolicy         = "standard"
	defaultProvider            = "anthropic"
	defaultModel               = "claude-sonnet-4-5"
)

// StageSettings is one row of the per-stage configuration table.
type StageSettings struct {
	Name              string             `yaml:"name"`
	DependsOn         []string           `yaml:"depends_on,omitempty"`
	Blocking          bool               `yaml:"blocking"`
	MaxRepairAttempts int                `yaml:"max_repair_attempts"`
	EstimatedCostUSD  float64            `yaml:"estimated_cost_usd"`
	TimeoutSeconds    int                `yaml:"timeout_seconds,omitempty"`
	Thresholds        map[string]float64 `yaml:"thresholds,omitempty"`
}

// Config is a book generation project file.
type Config struct {
	Project             string          `yaml:"project"`
	Prompt              string          `yaml:"prompt"`
	BudgetUSD           float64         `yaml:"budget_usd"`
	Provider            string          `yaml:"provider"`
	Model               string          `yaml:"model"`
	MaxSceneConcurrency int             `yaml:"max_scene_concurrency"`
	RetryPolicy         string          `yaml:"retry_policy"`
	DefaultThreshold    float64         `yaml:"default_threshold"`
	Stages              []StageSettings `yaml:"stages"`
}

// Load reads and parses a config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses config YAML, applies defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = defaultProvider
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxSceneConcurrency <= 0 {
		c.MaxSceneConcurrency = defaultMaxSceneConcurrency
	}
	if c.RetryPolicy == "" {
		c.RetryPolicy = defaultRetryPolicy
	}
	if c.DefaultThreshold <= 0 {
		c.DefaultThreshold = DefaultThreshold
	}
	if len(c.Stages) == 0 {
		c.Stages = DefaultStages()
	}
}

// Validate checks the config for structural problems. Called by Parse; also
// usable standalone for configs built in code.
func (c *Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("config: project name is required")
	}
	if c.Prompt == "" {
		return fmt.Errorf("config: prompt is required")
	}
	if c.BudgetUSD <= 0 {
		return fmt.Errorf("config: budget_usd must be positive, got %v", c.BudgetUSD)
	}
	if c.DefaultThreshold <= 0 || c.DefaultThreshold > 1 {
		return fmt.Errorf("config: default_threshold must be in (0, 1], got %v", c.DefaultThreshold)
	}

	seen := make(map[string]bool, len(c.Stages))
	for _, st := range c.Stages {
		if st.Name == "" {
			return fmt.Errorf("config: stage with empty name")
		}
		if seen[st.Name] {
			return fmt.Errorf("config: duplicate stage %q", st.Name)
		}
		seen[st.Name] = true
		if st.MaxRepairAttempts < 0 {
			return fmt.Errorf("config: stage %q: max_repair_attempts must be >= 0", st.Name)
		}
		if st.EstimatedCostUSD < 0 {
			return fmt.Errorf("config: stage %q: estimated_cost_usd must be >= 0", st.Name)
		}
		for metric, threshold := range st.Thresholds {
			if threshold <= 0 || threshold > 1 {
				return fmt.Errorf("config: stage %q: threshold for %q must be in (0, 1], got %v", st.Name, metric, threshold)
			}
		}
	}
	for _, st := range c.Stages {
		for _, dep := range st.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("config: stage %q depends on unknown stage %q", st.Name, dep)
			}
		}
	}
	return nil
}

// Threshold returns the effective threshold for a stage metric, falling
// back to the config default.
func (c *Config) Threshold(stage, metric string) float64 {
	for _, st := range c.Stages {
		if st.Name != stage {
			continue
		}
		if v, ok := st.Thresholds[metric]; ok {
			return v
		}
	}
	return c.DefaultThreshold
}

// Definitions converts the stage table into orchestrator stage definitions,
// preserving declaration order.
func (c *Config) Definitions() []pipeline.StageDefinition {
	defs := make([]pipeline.StageDefinition, len(c.Stages))
	for i, st := range c.Stages {
		defs[i] = pipeline.StageDefinition{
			Name:              st.Name,
			DependsOn:         append([]string(nil), st.DependsOn...),
			Blocking:          st.Blocking,
			MaxRepairAttempts: st.MaxRepairAttempts,
			EstimatedCostUSD:  st.EstimatedCostUSD,
			Timeout:           time.Duration(st.TimeoutSeconds) * time.Second,
		}
	}
	return defs
}

// DefaultStages returns the standard nine-stage book pipeline.
func DefaultStages() []StageSettings {
	return []StageSettings{
		{
			Name:              "concept",
			Blocking:          true,
			MaxRepairAttempts: 2,
			EstimatedCostUSD:  0.10,
		},
		{
			Name:              "world",
			DependsOn:         []string{"concept"},
			MaxRepairAttempts: 1,
			EstimatedCostUSD:  0.20,
		},
		{
			Name:              "beats",
			DependsOn:         []string{"concept", "world"},
			Blocking:          true,
			MaxRepairAttempts: 2,
			EstimatedCostUSD:  0.25,
		},
		{
			Name:              "characters",
			DependsOn:         []string{"beats"},
			MaxRepairAttempts: 1,
			EstimatedCostUSD:  0.20,
		},
		{
			Name:              "scenes",
			DependsOn:         []string{"beats", "characters"},
			Blocking:          true,
			MaxRepairAttempts: 2,
			EstimatedCostUSD:  2.00,
		},
		{
			Name:              "refine",
			DependsOn:         []string{"scenes"},
			MaxRepairAttempts: 1,
			EstimatedCostUSD:  1.00,
		},
		{
			Name:             "continuity",
			DependsOn:        []string{"refine", "characters"},
			EstimatedCostUSD: 0, // local audit, no model calls
		},
		{
			Name:              "humanize",
			DependsOn:         []string{"refine"},
			MaxRepairAttempts: 1,
			EstimatedCostUSD:  1.00,
		},
		{
			Name:             "assemble",
			DependsOn:        []string{"humanize", "continuity"},
			Blocking:         true,
			EstimatedCostUSD: 0, // local assembly, no model calls
		},
	}
}

// Default returns a ready-to-run config for the given project and prompt.
func Default(project, prompt string, budgetUSD float64) *Config {
	cfg := &Config{
		Project:   project,
		Prompt:    prompt,
		BudgetUSD: budgetUSD,
	}
	cfg.applyDefaults()
	return cfg
}
