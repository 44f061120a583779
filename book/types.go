// ABOUTME: Payload types for every book pipeline stage plus encode/decode helpers.
// ABOUTME: Payloads travel as kind-tagged StageOutputs; stages decode only the kinds they own.
package book

import (
	"encoding/json"
	"fmt"

	"github.com/2389-research/tome/pipeline"
)

// Stage names for the standard book pipeline.
const (
	StageConcept    = "concept"
	StageWorld      = "world"
	StageBeats      = "beats"
	StageCharacters = "characters"
	StageScenes     = "scenes"
	StageRefine     = "refine"
	StageContinuity = "continuity"
	StageHumanize   = "humanize"
	StageAssemble   = "assemble"
)

// Output kinds. Refine and humanize re-emit KindScenes: same schema,
// revised prose.
const (
	KindConcept    = "concept"
	KindWorld      = "world"
	KindBeats      = "beats"
	KindCharacters = "characters"
	KindScenes     = "scenes"
	KindContinuity = "continuity"
	KindManuscript = "manuscript"
)

// Concept is the high-level pitch produced by the concept stage.
type Concept struct {
	Title   string   `json:"title"`
	Genre   string   `json:"genre"`
	Premise string   `json:"premise"`
	Themes  []string `json:"themes"`
}

// Location is one named place in the story world.
type Location struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// World is the setting bible produced by the world stage.
type World struct {
	Setting   string     `json:"setting"`
	Locations []Location `json:"locations"`
	Rules     []string   `json:"rules"`
}

// Beat is one plot point. Index is the beat's position in the sheet;
// Chapter groups beats into chapters and must be non-decreasing.
type Beat struct {
	Index   int    `json:"index"`
	Chapter int    `json:"chapter"`
	Summary string `json:"summary"`
}

// BeatSheet is the ordered plot outline produced by the beats stage.
type BeatSheet struct {
	Beats []Beat `json:"beats"`
}

// Character is one cast member.
type Character struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	Voice       string `json:"voice"`
}

// CharacterSet is the cast produced by the characters stage.
type CharacterSet struct {
	Characters []Character `json:"characters"`
}

// Scene is drafted prose for one beat. BeatIndex ties the scene back to its
// beat so fan-out merges are deterministic regardless of completion order.
type Scene struct {
	BeatIndex int    `json:"beat_index"`
	Chapter   int    `json:"chapter"`
	Title     string `json:"title"`
	Prose     string `json:"prose"`
	WordCount int    `json:"word_count"`
}

// SceneSet is the drafted (or revised) manuscript body, ordered by beat.
type SceneSet struct {
	Scenes []Scene `json:"scenes"`
}

// ContinuityIssue is one problem found by the continuity audit.
type ContinuityIssue struct {
	BeatIndex int    `json:"beat_index"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
}

// ContinuityReport summarizes the local continuity audit.
type ContinuityReport struct {
	ScenesChecked int               `json:"scenes_checked"`
	Issues        []ContinuityIssue `json:"issues"`
}

// Manuscript is the assembled book.
type Manuscript struct {
	Title     string `json:"title"`
	Markdown  string `json:"markdown"`
	Chapters  int    `json:"chapters"`
	WordCount int    `json:"word_count"`
}

// Encode marshals a payload into a kind-tagged stage output.
func Encode(kind string, v any) (pipeline.StageOutput, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return pipeline.StageOutput{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return pipeline.StageOutput{Kind: kind, Payload: payload}, nil
}

// Decode unmarshals a stage output after checking its kind tag.
func Decode(out pipeline.StageOutput, wantKind string, v any) error {
	if out.Kind != wantKind {
		return fmt.Errorf("output kind %q, want %q", out.Kind, wantKind)
	}
	if err := json.Unmarshal(out.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", wantKind, err)
	}
	return nil
}

// decodeDependency fetches and decodes a named stage's output from state.
func decodeDependency(state *pipeline.GenerationState, stage, wantKind string, v any) error {
	out, ok := state.Output(stage)
	if !ok {
		return fmt.Errorf("missing %s output", stage)
	}
	return Decode(out, wantKind, v)
}
