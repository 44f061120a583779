// ABOUTME: Beats stage: outlines the plot as an ordered, chapter-grouped beat sheet.
package book

import (
	"context"
	"fmt"

	"github.com/2389-research/tome/pipeline"
)

// BeatsStage produces the beat sheet from the concept and world.
type BeatsStage struct {
	gen  Generator
	opts Options
}

// NewBeatsStage creates the beats stage.
func NewBeatsStage(gen Generator, opts Options) *BeatsStage {
	return &BeatsStage{gen: gen, opts: opts}
}

func (s *BeatsStage) Name() string { return StageBeats }

func (s *BeatsStage) Execute(ctx context.Context, state *pipeline.GenerationState, cfg pipeline.StageConfig) (*pipeline.StateDelta, error) {
	var concept Concept
	if err := decodeDependency(state, StageConcept, KindConcept, &concept); err != nil {
		return nil, err
	}
	var world World
	if err := decodeDependency(state, StageWorld, KindWorld, &world); err != nil {
		return nil, err
	}

	guard := pipeline.NewBudgetGuard(cfg.BudgetRemainingUSD)
	resp, err := callModel(ctx, s.gen, s.opts, guard, beatsSystem,
		beatsPrompt(concept, world, cfg), outlineMaxTokens, structuredTemperature)
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(resp.Text)
	if err != nil {
		return nil, pipeline.Transient("beats response is not JSON", err)
	}
	sheet, err := parseBeatSheet(raw)
	if err != nil {
		return nil, pipeline.Transient("beats response malformed", err)
	}

	out, err := Encode(KindBeats, sheet)
	if err != nil {
		return nil, err
	}
	return &pipeline.StateDelta{
		Output:  out,
		CostUSD: resp.Usage.CostUSD,
		Notes:   fmt.Sprintf("%d beats across %d chapters", len(sheet.Beats), chapterCount(sheet)),
	}, nil
}

// chapterCount returns the number of distinct chapters in a beat sheet.
func chapterCount(sheet BeatSheet) int {
	seen := make(map[int]bool)
	for _, b := range sheet.Beats {
		seen[b.Chapter] = true
	}
	return len(seen)
}
