// ABOUTME: Scenes stage: fans out one drafting call per beat under a concurrency and budget bound.
// ABOUTME: Results land in index-keyed slots so the merged scene set is deterministic.
package book

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/tome/pipeline"
)

// ScenesStage drafts prose for every beat concurrently.
type ScenesStage struct {
	gen  Generator
	opts Options
}

// NewScenesStage creates the scenes stage.
func NewScenesStage(gen Generator, opts Options) *ScenesStage {
	return &ScenesStage{gen: gen, opts: opts}
}

func (s *ScenesStage) Name() string { return StageScenes }

func (s *ScenesStage) Execute(ctx context.Context, state *pipeline.GenerationState, cfg pipeline.StageConfig) (*pipeline.StateDelta, error) {
	var concept Concept
	if err := decodeDependency(state, StageConcept, KindConcept, &concept); err != nil {
		return nil, err
	}
	var world World
	if err := decodeDependency(state, StageWorld, KindWorld, &world); err != nil {
		return nil, err
	}
	var sheet BeatSheet
	if err := decodeDependency(state, StageBeats, KindBeats, &sheet); err != nil {
		return nil, err
	}
	var cast CharacterSet
	if err := decodeDependency(state, StageCharacters, KindCharacters, &cast); err != nil {
		return nil, err
	}

	guard := pipeline.NewBudgetGuard(cfg.BudgetRemainingUSD)
	scenes := make([]Scene, len(sheet.Beats))
	costs := make([]float64, len(sheet.Beats))
	tasks := make([]func(context.Context) error, len(sheet.Beats))

	for i, beat := range sheet.Beats {
		i, beat := i, beat
		tasks[i] = func(taskCtx context.Context) error {
			resp, err := callModel(taskCtx, s.gen, s.opts, guard, sceneSystem,
				scenePrompt(concept, world, cast, beat, cfg), proseMaxTokens, creativeTemperature)
			if err != nil {
				return err
			}
			prose := strings.TrimSpace(resp.Text)
			if prose == "" {
				return pipeline.Transient(fmt.Sprintf("empty scene for beat %d", beat.Index+1), nil)
			}
			scenes[i] = Scene{
				BeatIndex: beat.Index,
				Chapter:   beat.Chapter,
				Title:     beatTitle(beat),
				Prose:     prose,
				WordCount: countWords(prose),
			}
			costs[i] = resp.Usage.CostUSD
			return nil
		}
	}

	if err := pipeline.FanOut(ctx, s.opts.MaxSceneConcurrency, tasks); err != nil {
		return nil, err
	}

	var total float64
	var words int
	for i := range scenes {
		total += costs[i]
		words += scenes[i].WordCount
	}

	out, err := Encode(KindScenes, SceneSet{Scenes: scenes})
	if err != nil {
		return nil, err
	}
	return &pipeline.StateDelta{
		Output:  out,
		CostUSD: total,
		Notes:   fmt.Sprintf("%d scenes, %d words", len(scenes), words),
	}, nil
}

// beatTitle derives a short scene title from the beat summary.
func beatTitle(beat Beat) string {
	summary := strings.TrimSpace(beat.Summary)
	if summary == "" {
		return fmt.Sprintf("Scene %d", beat.Index+1)
	}
	words := strings.Fields(summary)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " ")
}
