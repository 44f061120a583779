// ABOUTME: Model catalog with per-million-token pricing used to convert usage into USD cost.
// ABOUTME: Supports lookup by ID or alias and registration of custom models.
package llm

import "strings"

// ModelInfo describes one model's metadata and pricing.
type ModelInfo struct {
	ID                   string
	Provider             string
	DisplayName          string
	ContextWindow        int
	InputCostPerMillion  float64 // USD per 1M input tokens, 0 if unknown
	OutputCostPerMillion float64 // USD per 1M output tokens, 0 if unknown
	Aliases              []string
}

// Catalog holds a collection of ModelInfo entries.
type Catalog struct {
	models []ModelInfo
}

// builtinModels returns the default set of known models.
func builtinModels() []ModelInfo {
	return []ModelInfo{
		{
			ID:                   "claude-opus-4-6",
			Provider:             "anthropic",
			DisplayName:          "Claude Opus 4.6",
			ContextWindow:        200000,
			InputCostPerMillion:  15.0,
			OutputCostPerMillion: 75.0,
			Aliases:              []string{"opus", "claude-opus"},
		},
		{
			ID:                   "claude-sonnet-4-5",
			Provider:             "anthropic",
			DisplayName:          "Claude Sonnet 4.5",
			ContextWindow:        200000,
			InputCostPerMillion:  3.0,
			OutputCostPerMillion: 15.0,
			Aliases:              []string{"sonnet", "claude-sonnet"},
		},
		{
			ID:                   "gpt-5.2",
			Provider:             "openai",
			DisplayName:          "GPT-5.2",
			ContextWindow:        1047576,
			InputCostPerMillion:  1.25,
			OutputCostPerMillion: 10.0,
			Aliases:              []string{"gpt5"},
		},
		{
			ID:                   "gpt-5.2-mini",
			Provider:             "openai",
			DisplayName:          "GPT-5.2 Mini",
			ContextWindow:        1047576,
			InputCostPerMillion:  0.25,
			OutputCostPerMillion: 2.0,
			Aliases:              []string{"gpt5-mini"},
		},
	}
}

// NewCatalog creates a catalog seeded with the builtin models.
func NewCatalog() *Catalog {
	return &Catalog{models: builtinModels()}
}

// Register adds a custom model, replacing any entry with the same ID.
func (c *Catalog) Register(info ModelInfo) {
	for i, m := range c.models {
		if m.ID == info.ID {
			c.models[i] = info
			return
		}
	}
	c.models = append(c.models, info)
}

// Lookup finds a model by exact ID or alias (case-insensitive).
func (c *Catalog) Lookup(idOrAlias string) (ModelInfo, bool) {
	needle := strings.ToLower(idOrAlias)
	for _, m := range c.models {
		if strings.ToLower(m.ID) == needle {
			return m, true
		}
		for _, a := range m.Aliases {
			if strings.ToLower(a) == needle {
				return m, true
			}
		}
	}
	return ModelInfo{}, false
}

// CostForUsage converts token usage into USD using the model's pricing.
// Unknown models cost zero; callers treat zero as "unpriced".
func (c *Catalog) CostForUsage(model string, inputTokens, outputTokens int) float64 {
	info, ok := c.Lookup(model)
	if !ok {
		return 0
	}
	return float64(inputTokens)/1e6*info.InputCostPerMillion +
		float64(outputTokens)/1e6*info.OutputCostPerMillion
}
