// ABOUTME: Continuity stage: a deterministic local audit of the revised scenes. No model calls.
// ABOUTME: Flags empty scenes, chapter regressions, missing beats, uncast scenes, and embedded headings.
package book

import (
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/2389-research/tome/pipeline"
)

// Issue kinds produced by the continuity audit.
const (
	IssueEmptyScene        = "empty_scene"
	IssueChapterRegression = "chapter_regression"
	IssueMissingBeat       = "missing_beat"
	IssueUncastScene       = "uncast_scene"
	IssueEmbeddedHeading   = "embedded_heading"
)

// ContinuityStage audits the latest scene set against the beat sheet and
// cast. Purely local; it spends nothing.
type ContinuityStage struct{}

// NewContinuityStage creates the continuity stage.
func NewContinuityStage() *ContinuityStage {
	return &ContinuityStage{}
}

func (s *ContinuityStage) Name() string { return StageContinuity }

func (s *ContinuityStage) Execute(ctx context.Context, state *pipeline.GenerationState, cfg pipeline.StageConfig) (*pipeline.StateDelta, error) {
	scenes, from, err := latestScenes(state, StageRefine, StageScenes)
	if err != nil {
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

	report := audit(scenes, sheet, cast)

	out, err := Encode(KindContinuity, report)
	if err != nil {
		return nil, err
	}
	return &pipeline.StateDelta{
		Output: out,
		Notes:  fmt.Sprintf("audited %d scenes from %s, %d issues", report.ScenesChecked, from, len(report.Issues)),
	}, nil
}

// audit runs every continuity check and collects issues in scene order.
func audit(scenes SceneSet, sheet BeatSheet, cast CharacterSet) ContinuityReport {
	report := ContinuityReport{ScenesChecked: len(scenes.Scenes)}

	covered := make(map[int]bool, len(scenes.Scenes))
	prevChapter := 0
	for _, scene := range scenes.Scenes {
		covered[scene.BeatIndex] = true

		if strings.TrimSpace(scene.Prose) == "" {
			report.Issues = append(report.Issues, ContinuityIssue{
				BeatIndex: scene.BeatIndex,
				Kind:      IssueEmptyScene,
				Detail:    "scene has no prose",
			})
			continue
		}

		if scene.Chapter < prevChapter {
			report.Issues = append(report.Issues, ContinuityIssue{
				BeatIndex: scene.BeatIndex,
				Kind:      IssueChapterRegression,
				Detail:    fmt.Sprintf("chapter %d follows chapter %d", scene.Chapter, prevChapter),
			})
		}
		if scene.Chapter > prevChapter {
			prevChapter = scene.Chapter
		}

		if len(cast.Characters) > 0 && !mentionsAnyCharacter(scene.Prose, cast) {
			report.Issues = append(report.Issues, ContinuityIssue{
				BeatIndex: scene.BeatIndex,
				Kind:      IssueUncastScene,
				Detail:    "no known character appears in the scene",
			})
		}

		if hasMarkdownHeading(scene.Prose) {
			report.Issues = append(report.Issues, ContinuityIssue{
				BeatIndex: scene.BeatIndex,
				Kind:      IssueEmbeddedHeading,
				Detail:    "scene prose contains a markdown heading that would corrupt chapter structure",
			})
		}
	}

	for _, beat := range sheet.Beats {
		if !covered[beat.Index] {
			report.Issues = append(report.Issues, ContinuityIssue{
				BeatIndex: beat.Index,
				Kind:      IssueMissingBeat,
				Detail:    "beat has no drafted scene",
			})
		}
	}

	return report
}

// mentionsAnyCharacter reports whether any cast member's name appears in
// the prose. First names count; "Mara Venn" matches on "Mara".
func mentionsAnyCharacter(prose string, cast CharacterSet) bool {
	for _, c := range cast.Characters {
		first := c.Name
		if i := strings.IndexByte(first, ' '); i > 0 {
			first = first[:i]
		}
		if first != "" && strings.Contains(prose, first) {
			return true
		}
	}
	return false
}

// hasMarkdownHeading parses the prose as markdown and reports whether the
// AST contains a heading node.
func hasMarkdownHeading(prose string) bool {
	src := []byte(prose)
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(src))

	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if _, ok := n.(*ast.Heading); ok {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}
