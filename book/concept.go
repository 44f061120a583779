// ABOUTME: Concept stage: distills the user's premise into a title, genre, premise, and themes.
package book

import (
	"context"
	"fmt"

	"github.com/2389-research/tome/pipeline"
)

// ConceptStage produces the high-level pitch from the user's prompt.
type ConceptStage struct {
	gen  Generator
	opts Options
}

// NewConceptStage creates the concept stage.
func NewConceptStage(gen Generator, opts Options) *ConceptStage {
	return &ConceptStage{gen: gen, opts: opts}
}

func (s *ConceptStage) Name() string { return StageConcept }

func (s *ConceptStage) Execute(ctx context.Context, state *pipeline.GenerationState, cfg pipeline.StageConfig) (*pipeline.StateDelta, error) {
	guard := pipeline.NewBudgetGuard(cfg.BudgetRemainingUSD)

	resp, err := callModel(ctx, s.gen, s.opts, guard, conceptSystem,
		conceptPrompt(s.opts.Prompt, cfg), outlineMaxTokens, structuredTemperature)
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(resp.Text)
	if err != nil {
		return nil, pipeline.Transient("concept response is not JSON", err)
	}
	concept, err := parseConcept(raw)
	if err != nil {
		return nil, pipeline.Transient("concept response malformed", err)
	}

	out, err := Encode(KindConcept, concept)
	if err != nil {
		return nil, err
	}
	return &pipeline.StateDelta{
		Output:  out,
		CostUSD: resp.Usage.CostUSD,
		Notes:   fmt.Sprintf("concept %q (%s)", concept.Title, concept.Genre),
	}, nil
}
