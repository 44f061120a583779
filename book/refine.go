// ABOUTME: Refine stage: a line-editing pass over every drafted scene.
package book

import (
	"context"
	"fmt"

	"github.com/2389-research/tome/pipeline"
)

// RefineStage revises each drafted scene for pacing and phrasing.
type RefineStage struct {
	gen  Generator
	opts Options
}

// NewRefineStage creates the refine stage.
func NewRefineStage(gen Generator, opts Options) *RefineStage {
	return &RefineStage{gen: gen, opts: opts}
}

func (s *RefineStage) Name() string { return StageRefine }

func (s *RefineStage) Execute(ctx context.Context, state *pipeline.GenerationState, cfg pipeline.StageConfig) (*pipeline.StateDelta, error) {
	source, _, err := latestScenes(state, StageScenes)
	if err != nil {
		return nil, err
	}

	revised, cost, err := rewriteScenes(ctx, s.gen, s.opts, cfg, source, refineSystem, "Revise")
	if err != nil {
		return nil, err
	}

	out, err := Encode(KindScenes, revised)
	if err != nil {
		return nil, err
	}
	return &pipeline.StateDelta{
		Output:  out,
		CostUSD: cost,
		Notes:   fmt.Sprintf("refined %d scenes", len(revised.Scenes)),
	}, nil
}
