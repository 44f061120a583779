// ABOUTME: StageDefinition configuration, the Stage execution contract, and the stage/gate registry.
// ABOUTME: Definitions are declarative and immutable at runtime; stages are looked up by name.
package pipeline

import (
	"context"
	"time"
)

// StageDefinition is the static configuration for one pipeline stage.
type StageDefinition struct {
	// Name uniquely identifies the stage within a pipeline.
	Name string
	// DependsOn lists stages whose results must exist before this one runs.
	DependsOn []string
	// Blocking controls whether a gate failure halts the whole pipeline.
	Blocking bool
	// MaxRepairAttempts bounds re-invocations with gate feedback injected.
	// Distinct from infrastructure retries.
	MaxRepairAttempts int
	// EstimatedCostUSD feeds the budget pre-check before the stage runs.
	EstimatedCostUSD float64
	// Timeout bounds one execution attempt. Zero means no stage timeout.
	Timeout time.Duration
}

// StageConfig is the per-invocation input handed to a stage.
type StageConfig struct {
	Definition StageDefinition
	// Attempt is 1 for the initial invocation and increments per repair.
	Attempt int
	// Deficiencies carries the gate's worst-first misses on repair attempts.
	Deficiencies []Deficiency
	// BudgetRemainingUSD is the hard budget minus cost spent so far. Stages
	// that fan out must re-check it before each LLM call and return
	// ErrBudgetExhausted rather than overshoot.
	BudgetRemainingUSD float64
}

// StateDelta is what a successful stage execution contributes to the state.
type StateDelta struct {
	Output  StageOutput
	CostUSD float64
	Notes   string
}

// Stage is a unit of pipeline work. Execute reads the accumulated state,
// performs zero or more LLM calls, and returns a delta. It must not mutate
// the state it receives.
type Stage interface {
	Name() string
	Execute(ctx context.Context, state *GenerationState, cfg StageConfig) (*StateDelta, error)
}

// StageFunc adapts a plain function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, state *GenerationState, cfg StageConfig) (*StateDelta, error)
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Execute(ctx context.Context, state *GenerationState, cfg StageConfig) (*StateDelta, error) {
	return s.Fn(ctx, state, cfg)
}

// Registry maps stage names to implementations and optional gates.
type Registry struct {
	stages map[string]Stage
	gates  map[string]Gate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		stages: make(map[string]Stage),
		gates:  make(map[string]Gate),
	}
}

// Register adds a stage implementation, replacing any previous one.
func (r *Registry) Register(s Stage) {
	r.stages[s.Name()] = s
}

// RegisterGate attaches a gate to the named stage.
func (r *Registry) RegisterGate(stage string, g Gate) {
	r.gates[stage] = g
}

// Get returns the stage registered under name, or nil.
func (r *Registry) Get(name string) Stage {
	return r.stages[name]
}

// GateFor returns the gate attached to a stage, or nil if it has none.
func (r *Registry) GateFor(stage string) Gate {
	return r.gates[stage]
}
