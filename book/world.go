// ABOUTME: World stage: expands the concept into a setting bible with locations and rules.
package book

import (
	"context"
	"fmt"

	"github.com/2389-research/tome/pipeline"
)

// WorldStage builds the story world from the concept.
type WorldStage struct {
	gen  Generator
	opts Options
}

// NewWorldStage creates the world stage.
func NewWorldStage(gen Generator, opts Options) *WorldStage {
	return &WorldStage{gen: gen, opts: opts}
}

func (s *WorldStage) Name() string { return StageWorld }

func (s *WorldStage) Execute(ctx context.Context, state *pipeline.GenerationState, cfg pipeline.StageConfig) (*pipeline.StateDelta, error) {
	var concept Concept
	if err := decodeDependency(state, StageConcept, KindConcept, &concept); err != nil {
		return nil, err
	}

	guard := pipeline.NewBudgetGuard(cfg.BudgetRemainingUSD)
	resp, err := callModel(ctx, s.gen, s.opts, guard, worldSystem,
		worldPrompt(concept, cfg), outlineMaxTokens, structuredTemperature)
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(resp.Text)
	if err != nil {
		return nil, pipeline.Transient("world response is not JSON", err)
	}
	world, err := parseWorld(raw)
	if err != nil {
		return nil, pipeline.Transient("world response malformed", err)
	}

	out, err := Encode(KindWorld, world)
	if err != nil {
		return nil, err
	}
	return &pipeline.StateDelta{
		Output:  out,
		CostUSD: resp.Usage.CostUSD,
		Notes:   fmt.Sprintf("world with %d locations, %d rules", len(world.Locations), len(world.Rules)),
	}, nil
}
