// ABOUTME: System prompts and prompt builders for every LLM-backed book stage.
// ABOUTME: Repair attempts append the gate's worst-first deficiency list as revision notes.
package book

import (
	"fmt"
	"strings"

	"github.com/2389-research/tome/pipeline"
)

// Token and temperature settings per call class. Outline calls are small
// and structured; prose calls are large and creative.
const (
	outlineMaxTokens = 2048
	proseMaxTokens   = 4096

	structuredTemperature = 0.4
	creativeTemperature   = 0.9
)

const (
	conceptSystem = `You are a development editor distilling a book pitch.
Respond with a single JSON object: {"title", "genre", "premise", "themes"}.
The premise is 2-4 sentences; themes is a list of at least three short phrases.`

	worldSystem = `You are a story-world architect.
Respond with a single JSON object: {"setting", "locations": [{"name", "description"}], "rules"}.
Include at least three locations and the rules that constrain the plot.`

	beatsSystem = `You are a plot structure specialist.
Respond with a single JSON object: {"beats": [{"chapter", "summary"}]}.
Produce 12-24 beats in story order; chapter numbers never decrease.`

	charactersSystem = `You are a character designer.
Respond with a single JSON object: {"characters": [{"name", "role", "description", "voice"}]}.
Include every character the beat sheet needs; at least three.`

	sceneSystem = `You are a novelist drafting one scene.
Write the scene as prose only. No headings, no JSON, no commentary.
Target 400-900 words.`

	refineSystem = `You are a line editor revising one scene.
Tighten pacing, sharpen dialogue, and fix awkward phrasing while preserving
every plot event. Respond with the revised prose only.`

	humanizeSystem = `You are a prose stylist on a final pass.
Vary sentence rhythm and word choice so the scene reads naturally.
Preserve meaning and plot. Respond with the revised prose only.`
)

// repairNotes renders gate deficiencies as revision instructions. The list
// arrives worst-first, so the most severe miss leads.
func repairNotes(deficiencies []pipeline.Deficiency) string {
	if len(deficiencies) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nYour previous attempt fell short. Fix these, most severe first:\n")
	for _, d := range deficiencies {
		fmt.Fprintf(&b, "- %s scored %.2f, needs at least %.2f\n", d.Metric, d.Observed, d.Threshold)
	}
	return b.String()
}

func conceptPrompt(userPrompt string, cfg pipeline.StageConfig) string {
	return "Develop a book concept for this premise:\n\n" + userPrompt + repairNotes(cfg.Deficiencies)
}

func worldPrompt(concept Concept, cfg pipeline.StageConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Build the world for %q (%s).\n\nPremise: %s\n", concept.Title, concept.Genre, concept.Premise)
	if len(concept.Themes) > 0 {
		fmt.Fprintf(&b, "Themes: %s\n", strings.Join(concept.Themes, ", "))
	}
	b.WriteString(repairNotes(cfg.Deficiencies))
	return b.String()
}

func beatsPrompt(concept Concept, world World, cfg pipeline.StageConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Outline %q as a beat sheet.\n\nPremise: %s\nSetting: %s\n",
		concept.Title, concept.Premise, world.Setting)
	if len(world.Rules) > 0 {
		fmt.Fprintf(&b, "World rules: %s\n", strings.Join(world.Rules, "; "))
	}
	b.WriteString(repairNotes(cfg.Deficiencies))
	return b.String()
}

func charactersPrompt(concept Concept, sheet BeatSheet, cfg pipeline.StageConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Design the cast for %q.\n\nPremise: %s\n\nBeat sheet:\n", concept.Title, concept.Premise)
	for _, beat := range sheet.Beats {
		fmt.Fprintf(&b, "%d. %s\n", beat.Index+1, beat.Summary)
	}
	b.WriteString(repairNotes(cfg.Deficiencies))
	return b.String()
}

func scenePrompt(concept Concept, world World, cast CharacterSet, beat Beat, cfg pipeline.StageConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft the scene for beat %d of %q.\n\nBeat: %s\nSetting: %s\n",
		beat.Index+1, concept.Title, beat.Summary, world.Setting)
	if len(cast.Characters) > 0 {
		b.WriteString("Cast:\n")
		for _, c := range cast.Characters {
			fmt.Fprintf(&b, "- %s (%s): %s\n", c.Name, c.Role, c.Voice)
		}
	}
	b.WriteString(repairNotes(cfg.Deficiencies))
	return b.String()
}

func rewritePrompt(verb string, scene Scene, cfg pipeline.StageConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s this scene (beat %d, chapter %d):\n\n%s\n", verb, scene.BeatIndex+1, scene.Chapter, scene.Prose)
	b.WriteString(repairNotes(cfg.Deficiencies))
	return b.String()
}
