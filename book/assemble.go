// ABOUTME: Assemble stage: builds the final markdown manuscript from the styled scenes. No model calls.
// ABOUTME: Verifies the result by re-parsing it with goldmark to count chapters and words.
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

// AssembleStage joins the scenes into a chaptered markdown manuscript.
type AssembleStage struct{}

// NewAssembleStage creates the assemble stage.
func NewAssembleStage() *AssembleStage {
	return &AssembleStage{}
}

func (s *AssembleStage) Name() string { return StageAssemble }

func (s *AssembleStage) Execute(ctx context.Context, state *pipeline.GenerationState, cfg pipeline.StageConfig) (*pipeline.StateDelta, error) {
	var concept Concept
	if err := decodeDependency(state, StageConcept, KindConcept, &concept); err != nil {
		return nil, err
	}
	scenes, from, err := latestScenes(state, StageHumanize, StageRefine, StageScenes)
	if err != nil {
		return nil, err
	}
	if len(scenes.Scenes) == 0 {
		return nil, pipeline.Permanent("no scenes to assemble", nil)
	}

	markdown := buildManuscript(concept, scenes)
	chapters, words := analyzeManuscript(markdown)

	manuscript := Manuscript{
		Title:     concept.Title,
		Markdown:  markdown,
		Chapters:  chapters,
		WordCount: words,
	}

	out, err := Encode(KindManuscript, manuscript)
	if err != nil {
		return nil, err
	}
	return &pipeline.StateDelta{
		Output: out,
		Notes:  fmt.Sprintf("assembled %d chapters, %d words from %s", chapters, words, from),
	}, nil
}

// buildManuscript renders the scenes as title + chapter headings + prose.
func buildManuscript(concept Concept, scenes SceneSet) string {
	var b strings.Builder
	title := concept.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&b, "# %s\n", title)

	currentChapter := 0
	for _, scene := range scenes.Scenes {
		if scene.Chapter != currentChapter {
			currentChapter = scene.Chapter
			fmt.Fprintf(&b, "\n## Chapter %d\n", currentChapter)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(scene.Prose))
		b.WriteString("\n")
	}
	return b.String()
}

// analyzeManuscript parses the markdown and returns the chapter count
// (level-2 headings) and total word count of the text content.
func analyzeManuscript(markdown string) (chapters, words int) {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(gmtext.NewReader(src))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 2 {
				chapters++
			}
		case *ast.Text:
			words += countWords(string(node.Segment.Value(src)))
		}
		return ast.WalkContinue, nil
	})
	return chapters, words
}
