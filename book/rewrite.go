// ABOUTME: Shared fan-out rewrite pass used by the refine and humanize stages.
// ABOUTME: Also resolves the freshest scene set when an upstream non-blocking pass failed.
package book

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/tome/pipeline"
)

// latestScenes returns the scene set from the first listed stage that has
// an output. Later passes come first, so a failed non-blocking pass falls
// back to the previous one.
func latestScenes(state *pipeline.GenerationState, stages ...string) (SceneSet, string, error) {
	for _, stage := range stages {
		out, ok := state.Output(stage)
		if !ok {
			continue
		}
		var set SceneSet
		if err := Decode(out, KindScenes, &set); err != nil {
			return SceneSet{}, "", err
		}
		return set, stage, nil
	}
	return SceneSet{}, "", fmt.Errorf("no scene set found in stages %v", stages)
}

// rewriteScenes runs one model call per scene, writing revised prose into
// index-keyed slots. Returns the revised set and the total cost.
func rewriteScenes(ctx context.Context, gen Generator, opts Options, cfg pipeline.StageConfig, source SceneSet, system, verb string) (SceneSet, float64, error) {
	guard := pipeline.NewBudgetGuard(cfg.BudgetRemainingUSD)
	revised := make([]Scene, len(source.Scenes))
	costs := make([]float64, len(source.Scenes))
	tasks := make([]func(context.Context) error, len(source.Scenes))

	for i, scene := range source.Scenes {
		i, scene := i, scene
		tasks[i] = func(taskCtx context.Context) error {
			resp, err := callModel(taskCtx, gen, opts, guard, system,
				rewritePrompt(verb, scene, cfg), proseMaxTokens, creativeTemperature)
			if err != nil {
				return err
			}
			prose := strings.TrimSpace(resp.Text)
			if prose == "" {
				return pipeline.Transient(fmt.Sprintf("empty rewrite for beat %d", scene.BeatIndex+1), nil)
			}
			scene.Prose = prose
			scene.WordCount = countWords(prose)
			revised[i] = scene
			costs[i] = resp.Usage.CostUSD
			return nil
		}
	}

	if err := pipeline.FanOut(ctx, opts.MaxSceneConcurrency, tasks); err != nil {
		return SceneSet{}, 0, err
	}

	var total float64
	for _, c := range costs {
		total += c
	}
	return SceneSet{Scenes: revised}, total, nil
}
