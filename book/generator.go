// ABOUTME: Generator abstraction over the LLM client plus shared per-call plumbing for stages.
// ABOUTME: Stages call through callModel so budget checks and cost accounting stay uniform.
package book

import (
	"context"

	"github.com/2389-research/tome/llm"
	"github.com/2389-research/tome/pipeline"
)

// Generator issues one model call. *llm.Client satisfies this; tests use
// fakes.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Options configures the book stages as a group.
type Options struct {
	// Prompt is the user's book premise, fed to the concept stage.
	Prompt string
	// Provider and Model select the backing LLM for every stage.
	Provider string
	Model    string
	// MaxSceneConcurrency bounds fan-out stages. Zero means the FanOut
	// default.
	MaxSceneConcurrency int
	// Threshold resolves the gate threshold for a stage metric. Nil means
	// every metric uses 0.85.
	Threshold func(stage, metric string) float64
}

func (o Options) threshold(stage, metric string) float64 {
	if o.Threshold == nil {
		return 0.85
	}
	return o.Threshold(stage, metric)
}

// callModel performs one generation call with the shared budget guard
// protocol: check before, charge after.
func callModel(ctx context.Context, gen Generator, opts Options, guard *pipeline.BudgetGuard, system, prompt string, maxTokens int, temperature float64) (*llm.Response, error) {
	if err := guard.Check(); err != nil {
		return nil, err
	}
	resp, err := gen.Generate(ctx, llm.Request{
		Provider:    opts.Provider,
		Model:       opts.Model,
		System:      system,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}
	guard.Charge(resp.Usage.CostUSD)
	return resp, nil
}
