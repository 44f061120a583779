// ABOUTME: Tests for config parsing, defaulting, validation, and stage definition conversion.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
project: test-book
prompt: a heist novel set in a floating city
budget_usd: 25
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Provider != "anthropic" {
		t.Errorf("Provider = %q, want anthropic", cfg.Provider)
	}
	if cfg.Model != "claude-sonnet-4-5" {
		t.Errorf("Model = %q, want claude-sonnet-4-5", cfg.Model)
	}
	if cfg.MaxSceneConcurrency != 4 {
		t.Errorf("MaxSceneConcurrency = %d, want 4", cfg.MaxSceneConcurrency)
	}
	if cfg.RetryPolicy != "standard" {
		t.Errorf("RetryPolicy = %q, want standard", cfg.RetryPolicy)
	}
	if cfg.DefaultThreshold != 0.85 {
		t.Errorf("DefaultThreshold = %v, want 0.85", cfg.DefaultThreshold)
	}
	if len(cfg.Stages) != 9 {
		t.Errorf("expected 9 default stages, got %d", len(cfg.Stages))
	}
}

func TestParseRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no project", "prompt: x\nbudget_usd: 1\n", "project name is required"},
		{"no prompt", "project: x\nbudget_usd: 1\n", "prompt is required"},
		{"no budget", "project: x\nprompt: y\n", "budget_usd must be positive"},
		{"negative budget", "project: x\nprompt: y\nbudget_usd: -5\n", "budget_usd must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParseRejectsBadStageTable(t *testing.T) {
	yaml := minimalYAML + `
stages:
  - name: alpha
  - name: alpha
`
	if _, err := Parse([]byte(yaml)); err == nil || !strings.Contains(err.Error(), "duplicate stage") {
		t.Errorf("expected duplicate stage error, got %v", err)
	}

	yaml = minimalYAML + `
stages:
  - name: alpha
    depends_on: [ghost]
`
	if _, err := Parse([]byte(yaml)); err == nil || !strings.Contains(err.Error(), "unknown stage") {
		t.Errorf("expected unknown dependency error, got %v", err)
	}
}

func TestParseRejectsBadThreshold(t *testing.T) {
	yaml := minimalYAML + `
stages:
  - name: alpha
    thresholds:
      coverage: 1.5
`
	if _, err := Parse([]byte(yaml)); err == nil || !strings.Contains(err.Error(), "threshold") {
		t.Errorf("expected threshold range error, got %v", err)
	}
}

func TestThresholdFallsBackToDefault(t *testing.T) {
	yaml := minimalYAML + `
default_threshold: 0.7
stages:
  - name: alpha
    thresholds:
      coverage: 0.9
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cfg.Threshold("alpha", "coverage"); got != 0.9 {
		t.Errorf("Threshold(alpha, coverage) = %v, want 0.9", got)
	}
	if got := cfg.Threshold("alpha", "other"); got != 0.7 {
		t.Errorf("Threshold(alpha, other) = %v, want 0.7", got)
	}
	if got := cfg.Threshold("missing", "coverage"); got != 0.7 {
		t.Errorf("Threshold(missing, coverage) = %v, want 0.7", got)
	}
}

func TestDefinitionsPreserveOrderAndFields(t *testing.T) {
	cfg := Default("p", "a story", 10)
	defs := cfg.Definitions()

	if len(defs) != 9 {
		t.Fatalf("expected 9 definitions, got %d", len(defs))
	}
	if defs[0].Name != "concept" || defs[8].Name != "assemble" {
		t.Errorf("unexpected stage order: first=%q last=%q", defs[0].Name, defs[8].Name)
	}

	scenes := -1
	for i := range defs {
		if defs[i].Name == "scenes" {
			scenes = i
			break
		}
	}
	if scenes == -1 {
		t.Fatal("scenes stage missing from defaults")
	}
	d := defs[scenes]
	if !d.Blocking {
		t.Error("scenes stage should be blocking")
	}
	if d.MaxRepairAttempts != 2 {
		t.Errorf("scenes MaxRepairAttempts = %d, want 2", d.MaxRepairAttempts)
	}
	if len(d.DependsOn) != 2 {
		t.Errorf("scenes DependsOn = %v, want [beats characters]", d.DependsOn)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tome.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Project != "test-book" {
		t.Errorf("Project = %q, want test-book", cfg.Project)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
