// ABOUTME: Quality gates for each book stage, built from deterministic structural metrics.
// ABOUTME: Every metric is normalized to [0,1]; decode failures surface as structural blocks.
package book

import (
	"fmt"
	"strings"

	"github.com/2389-research/tome/pipeline"
)

// Target constants for normalizing counts into [0,1] scores.
const (
	targetPremiseWords = 40
	targetThemes       = 3
	targetLocations    = 3
	targetRules        = 2
	targetBeats        = 12
	targetCast         = 3
	minSceneWords      = 150
	targetBookWords    = 1000
)

// ratio clamps observed/target to [0,1].
func ratio(observed, target float64) float64 {
	if target <= 0 {
		return 1
	}
	v := observed / target
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// conceptGate checks premise substance and theme count.
func conceptGate(opts Options) pipeline.Gate {
	return pipeline.NewMetricGate(
		pipeline.Metric{
			Name:      "premise_length",
			Threshold: opts.threshold(StageConcept, "premise_length"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var c Concept
				if err := Decode(out, KindConcept, &c); err != nil {
					return 0, err
				}
				return ratio(float64(countWords(c.Premise)), targetPremiseWords), nil
			},
		},
		pipeline.Metric{
			Name:      "theme_count",
			Threshold: opts.threshold(StageConcept, "theme_count"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var c Concept
				if err := Decode(out, KindConcept, &c); err != nil {
					return 0, err
				}
				return ratio(float64(len(c.Themes)), targetThemes), nil
			},
		},
	)
}

// worldGate checks location and rule coverage.
func worldGate(opts Options) pipeline.Gate {
	return pipeline.NewMetricGate(
		pipeline.Metric{
			Name:      "location_count",
			Threshold: opts.threshold(StageWorld, "location_count"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var w World
				if err := Decode(out, KindWorld, &w); err != nil {
					return 0, err
				}
				return ratio(float64(len(w.Locations)), targetLocations), nil
			},
		},
		pipeline.Metric{
			Name:      "rule_count",
			Threshold: opts.threshold(StageWorld, "rule_count"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var w World
				if err := Decode(out, KindWorld, &w); err != nil {
					return 0, err
				}
				return ratio(float64(len(w.Rules)), targetRules), nil
			},
		},
	)
}

// beatsGate checks beat count, chapter monotonicity, and summary coverage.
func beatsGate(opts Options) pipeline.Gate {
	return pipeline.NewMetricGate(
		pipeline.Metric{
			Name:      "beat_count",
			Threshold: opts.threshold(StageBeats, "beat_count"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var sheet BeatSheet
				if err := Decode(out, KindBeats, &sheet); err != nil {
					return 0, err
				}
				return ratio(float64(len(sheet.Beats)), targetBeats), nil
			},
		},
		pipeline.Metric{
			Name:      "chapter_monotonic",
			Threshold: opts.threshold(StageBeats, "chapter_monotonic"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var sheet BeatSheet
				if err := Decode(out, KindBeats, &sheet); err != nil {
					return 0, err
				}
				prev := 0
				for _, b := range sheet.Beats {
					if b.Chapter < prev {
						return 0, nil
					}
					prev = b.Chapter
				}
				return 1, nil
			},
		},
		pipeline.Metric{
			Name:      "summary_coverage",
			Threshold: opts.threshold(StageBeats, "summary_coverage"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var sheet BeatSheet
				if err := Decode(out, KindBeats, &sheet); err != nil {
					return 0, err
				}
				if len(sheet.Beats) == 0 {
					return 0, nil
				}
				filled := 0
				for _, b := range sheet.Beats {
					if strings.TrimSpace(b.Summary) != "" {
						filled++
					}
				}
				return float64(filled) / float64(len(sheet.Beats)), nil
			},
		},
	)
}

// charactersGate checks cast size and role coverage.
func charactersGate(opts Options) pipeline.Gate {
	return pipeline.NewMetricGate(
		pipeline.Metric{
			Name:      "cast_size",
			Threshold: opts.threshold(StageCharacters, "cast_size"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var cast CharacterSet
				if err := Decode(out, KindCharacters, &cast); err != nil {
					return 0, err
				}
				return ratio(float64(len(cast.Characters)), targetCast), nil
			},
		},
		pipeline.Metric{
			Name:      "role_coverage",
			Threshold: opts.threshold(StageCharacters, "role_coverage"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var cast CharacterSet
				if err := Decode(out, KindCharacters, &cast); err != nil {
					return 0, err
				}
				if len(cast.Characters) == 0 {
					return 0, nil
				}
				filled := 0
				for _, c := range cast.Characters {
					if strings.TrimSpace(c.Role) != "" {
						filled++
					}
				}
				return float64(filled) / float64(len(cast.Characters)), nil
			},
		},
	)
}

// sceneSetGate checks beat coverage and per-scene length for any stage that
// emits a scene set (scenes, refine, humanize).
func sceneSetGate(stage string, opts Options) pipeline.Gate {
	return pipeline.NewMetricGate(
		pipeline.Metric{
			Name:      "beat_coverage",
			Threshold: opts.threshold(stage, "beat_coverage"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var set SceneSet
				if err := Decode(out, KindScenes, &set); err != nil {
					return 0, err
				}
				var sheet BeatSheet
				if err := decodeDependency(state, StageBeats, KindBeats, &sheet); err != nil {
					return 0, fmt.Errorf("scene gate needs the beat sheet: %w", err)
				}
				if len(sheet.Beats) == 0 {
					return 0, fmt.Errorf("beat sheet is empty")
				}
				covered := make(map[int]bool, len(set.Scenes))
				for _, sc := range set.Scenes {
					if strings.TrimSpace(sc.Prose) != "" {
						covered[sc.BeatIndex] = true
					}
				}
				hits := 0
				for _, b := range sheet.Beats {
					if covered[b.Index] {
						hits++
					}
				}
				return float64(hits) / float64(len(sheet.Beats)), nil
			},
		},
		pipeline.Metric{
			Name:      "scene_length",
			Threshold: opts.threshold(stage, "scene_length"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var set SceneSet
				if err := Decode(out, KindScenes, &set); err != nil {
					return 0, err
				}
				if len(set.Scenes) == 0 {
					return 0, nil
				}
				long := 0
				for _, sc := range set.Scenes {
					if sc.WordCount >= minSceneWords {
						long++
					}
				}
				return float64(long) / float64(len(set.Scenes)), nil
			},
		},
	)
}

// continuityGate checks the fraction of scenes without issues.
func continuityGate(opts Options) pipeline.Gate {
	return pipeline.NewMetricGate(
		pipeline.Metric{
			Name:      "clean_scenes",
			Threshold: opts.threshold(StageContinuity, "clean_scenes"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var report ContinuityReport
				if err := Decode(out, KindContinuity, &report); err != nil {
					return 0, err
				}
				if report.ScenesChecked == 0 {
					return 0, nil
				}
				v := 1 - float64(len(report.Issues))/float64(report.ScenesChecked)
				if v < 0 {
					v = 0
				}
				return v, nil
			},
		},
	)
}

// assembleGate checks manuscript structure and length.
func assembleGate(opts Options) pipeline.Gate {
	return pipeline.NewMetricGate(
		pipeline.Metric{
			Name:      "chapter_structure",
			Threshold: opts.threshold(StageAssemble, "chapter_structure"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var m Manuscript
				if err := Decode(out, KindManuscript, &m); err != nil {
					return 0, err
				}
				if m.Chapters >= 1 {
					return 1, nil
				}
				return 0, nil
			},
		},
		pipeline.Metric{
			Name:      "word_count",
			Threshold: opts.threshold(StageAssemble, "word_count"),
			Measure: func(out pipeline.StageOutput, state *pipeline.GenerationState) (float64, error) {
				var m Manuscript
				if err := Decode(out, KindManuscript, &m); err != nil {
					return 0, err
				}
				return ratio(float64(m.WordCount), targetBookWords), nil
			},
		},
	)
}
