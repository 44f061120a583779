// ABOUTME: Characters stage: designs the cast the beat sheet needs.
package book

import (
	"context"
	"fmt"

	"github.com/2389-research/tome/pipeline"
)

// CharactersStage produces the cast from the concept and beat sheet.
type CharactersStage struct {
	gen  Generator
	opts Options
}

// NewCharactersStage creates the characters stage.
func NewCharactersStage(gen Generator, opts Options) *CharactersStage {
	return &CharactersStage{gen: gen, opts: opts}
}

func (s *CharactersStage) Name() string { return StageCharacters }

func (s *CharactersStage) Execute(ctx context.Context, state *pipeline.GenerationState, cfg pipeline.StageConfig) (*pipeline.StateDelta, error) {
	var concept Concept
	if err := decodeDependency(state, StageConcept, KindConcept, &concept); err != nil {
		return nil, err
	}
	var sheet BeatSheet
	if err := decodeDependency(state, StageBeats, KindBeats, &sheet); err != nil {
		return nil, err
	}

	guard := pipeline.NewBudgetGuard(cfg.BudgetRemainingUSD)
	resp, err := callModel(ctx, s.gen, s.opts, guard, charactersSystem,
		charactersPrompt(concept, sheet, cfg), outlineMaxTokens, structuredTemperature)
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(resp.Text)
	if err != nil {
		return nil, pipeline.Transient("characters response is not JSON", err)
	}
	cast, err := parseCharacterSet(raw)
	if err != nil {
		return nil, pipeline.Transient("characters response malformed", err)
	}

	out, err := Encode(KindCharacters, cast)
	if err != nil {
		return nil, err
	}
	return &pipeline.StateDelta{
		Output:  out,
		CostUSD: resp.Usage.CostUSD,
		Notes:   fmt.Sprintf("cast of %d", len(cast.Characters)),
	}, nil
}
