// ABOUTME: Tolerant extraction of JSON from LLM responses that wrap payloads in prose or code fences.
// ABOUTME: Uses gjson for validation and field access so near-miss outputs still parse.
package book

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON pulls the first JSON object or array out of model text.
// Models wrap JSON in explanation or markdown fences often enough that
// strict unmarshaling of the whole response is a losing strategy. Tries, in
// order: the whole trimmed text, a fenced code block, and a balanced-brace
// scan.
func ExtractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("empty response")
	}

	if isJSONDocument(trimmed) {
		return trimmed, nil
	}

	if fenced, ok := extractFenced(trimmed); ok && isJSONDocument(fenced) {
		return fenced, nil
	}

	if candidate, ok := extractBalanced(trimmed); ok && isJSONDocument(candidate) {
		return candidate, nil
	}

	return "", fmt.Errorf("no JSON document found in response")
}

// isJSONDocument reports whether s is a valid JSON object or array. Bare
// scalars are valid JSON but never a stage payload.
func isJSONDocument(s string) bool {
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return false
	}
	return gjson.Valid(s)
}

// extractFenced returns the contents of the first markdown code fence.
func extractFenced(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start == -1 {
		return "", false
	}
	rest := text[start+3:]
	// Skip an optional language tag on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[") {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// extractBalanced scans for the first balanced {...} or [...] span,
// ignoring brackets inside JSON strings.
func extractBalanced(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return "", false
	}
	open := text[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// parseConcept extracts a Concept from raw JSON using tolerant field access.
func parseConcept(raw string) (Concept, error) {
	c := Concept{
		Title:   gjson.Get(raw, "title").String(),
		Genre:   gjson.Get(raw, "genre").String(),
		Premise: gjson.Get(raw, "premise").String(),
	}
	for _, t := range gjson.Get(raw, "themes").Array() {
		if s := strings.TrimSpace(t.String()); s != "" {
			c.Themes = append(c.Themes, s)
		}
	}
	if c.Premise == "" {
		return c, fmt.Errorf("concept missing premise")
	}
	return c, nil
}

// parseWorld extracts a World from raw JSON.
func parseWorld(raw string) (World, error) {
	w := World{Setting: gjson.Get(raw, "setting").String()}
	for _, loc := range gjson.Get(raw, "locations").Array() {
		w.Locations = append(w.Locations, Location{
			Name:        loc.Get("name").String(),
			Description: loc.Get("description").String(),
		})
	}
	for _, r := range gjson.Get(raw, "rules").Array() {
		if s := strings.TrimSpace(r.String()); s != "" {
			w.Rules = append(w.Rules, s)
		}
	}
	if w.Setting == "" && len(w.Locations) == 0 {
		return w, fmt.Errorf("world missing setting and locations")
	}
	return w, nil
}

// parseBeatSheet extracts a BeatSheet from raw JSON. Beats are renumbered
// sequentially; a model that emits its own indices cannot corrupt ordering.
func parseBeatSheet(raw string) (BeatSheet, error) {
	var sheet BeatSheet
	beats := gjson.Get(raw, "beats")
	if !beats.Exists() && strings.HasPrefix(strings.TrimSpace(raw), "[") {
		beats = gjson.Parse(raw)
	}
	for i, b := range beats.Array() {
		chapter := int(b.Get("chapter").Int())
		if chapter <= 0 {
			chapter = 1
		}
		sheet.Beats = append(sheet.Beats, Beat{
			Index:   i,
			Chapter: chapter,
			Summary: strings.TrimSpace(b.Get("summary").String()),
		})
	}
	if len(sheet.Beats) == 0 {
		return sheet, fmt.Errorf("beat sheet contains no beats")
	}
	return sheet, nil
}

// parseCharacterSet extracts a CharacterSet from raw JSON.
func parseCharacterSet(raw string) (CharacterSet, error) {
	var set CharacterSet
	chars := gjson.Get(raw, "characters")
	if !chars.Exists() && strings.HasPrefix(strings.TrimSpace(raw), "[") {
		chars = gjson.Parse(raw)
	}
	for _, c := range chars.Array() {
		name := strings.TrimSpace(c.Get("name").String())
		if name == "" {
			continue
		}
		set.Characters = append(set.Characters, Character{
			Name:        name,
			Role:        c.Get("role").String(),
			Description: c.Get("description").String(),
			Voice:       c.Get("voice").String(),
		})
	}
	if len(set.Characters) == 0 {
		return set, fmt.Errorf("character set contains no named characters")
	}
	return set, nil
}

// countWords returns the whitespace-delimited word count of prose.
func countWords(prose string) int {
	return len(strings.Fields(prose))
}
