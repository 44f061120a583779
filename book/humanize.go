// ABOUTME: Humanize stage: a final style pass varying rhythm and word choice per scene.
package book

import (
	"context"
	"fmt"

	"github.com/2389-research/tome/pipeline"
)

// HumanizeStage runs the final prose style pass. If the refine pass failed
// non-blocking, it falls back to the original drafts.
type HumanizeStage struct {
	gen  Generator
	opts Options
}

// NewHumanizeStage creates the humanize stage.
func NewHumanizeStage(gen Generator, opts Options) *HumanizeStage {
	return &HumanizeStage{gen: gen, opts: opts}
}

func (s *HumanizeStage) Name() string { return StageHumanize }

func (s *HumanizeStage) Execute(ctx context.Context, state *pipeline.GenerationState, cfg pipeline.StageConfig) (*pipeline.StateDelta, error) {
	source, from, err := latestScenes(state, StageRefine, StageScenes)
	if err != nil {
		return nil, err
	}

	revised, cost, err := rewriteScenes(ctx, s.gen, s.opts, cfg, source, humanizeSystem, "Restyle")
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
		Notes:   fmt.Sprintf("humanized %d scenes from %s", len(revised.Scenes), from),
	}, nil
}
