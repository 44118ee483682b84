// Package pricing holds per-model token rates used for cost estimates.
package pricing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rate is a price in USD per one million tokens.
type Rate struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// DefaultRate applies to any model missing from the table.
var DefaultRate = Rate{Input: 5.00, Output: 15.00}

var builtin = map[string]Rate{
	"gpt-4o":                       {Input: 2.50, Output: 10.00},
	"gpt-4-turbo":                  {Input: 10.00, Output: 30.00},
	"gpt-4":                        {Input: 30.00, Output: 60.00},
	"gpt-3.5-turbo":                {Input: 0.50, Output: 1.50},
	"o1":                           {Input: 15.00, Output: 60.00},
	"o1-mini":                      {Input: 3.00, Output: 12.00},
	"claude-sonnet-4-20250514":     {Input: 3.00, Output: 15.00},
	"claude-opus-4-20250514":       {Input: 15.00, Output: 75.00},
	"gemini/gemini-2.0-flash":      {Input: 0.075, Output: 0.30},
	"gemini/gemini-pro":            {Input: 0.50, Output: 1.50},
	"xai/grok-3":                   {Input: 3.00, Output: 15.00},
	"xai/grok-beta":                {Input: 5.00, Output: 15.00},
	"mistral/mistral-large":        {Input: 2.00, Output: 6.00},
	"groq/llama-3.3-70b-versatile": {Input: 0.59, Output: 0.79},
	"deepseek/deepseek-chat":       {Input: 0.14, Output: 0.28},
}

// Table resolves rates for model identifiers. It is read-only after construction.
type Table struct {
	fallback Rate
	rates    map[string]Rate
}

type overrideFile struct {
	Pricing struct {
		Default *Rate           `yaml:"default"`
		Models  map[string]Rate `yaml:"models"`
	} `yaml:"pricing"`
}

// Default returns the built-in table.
func Default() *Table {
	rates := make(map[string]Rate, len(builtin))
	for model, rate := range builtin {
		rates[model] = rate
	}
	return &Table{fallback: DefaultRate, rates: rates}
}

// Load returns the built-in table merged with the YAML overrides at path.
// An empty path yields the built-in table.
func Load(path string) (*Table, error) {
	table := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}

	if file.Pricing.Default != nil {
		if err := validateRate("default", *file.Pricing.Default); err != nil {
			return nil, err
		}
		table.fallback = *file.Pricing.Default
	}
	for model, rate := range file.Pricing.Models {
		if err := validateRate(model, rate); err != nil {
			return nil, err
		}
		table.rates[normalize(model)] = rate
	}

	return table, nil
}

func validateRate(name string, rate Rate) error {
	if rate.Input < 0 || rate.Output < 0 {
		return fmt.Errorf("pricing for %s must not be negative", name)
	}
	if rate.Input == 0 && rate.Output == 0 {
		return errors.New("pricing for " + name + " must set input or output")
	}
	return nil
}

// Lookup returns the rate for model and whether it was found in the table.
//
// The full identifier is tried first, then the part after the last slash, so
// routed ids such as "openrouter/openai/gpt-4o" share the vendor rate.
func (t *Table) Lookup(model string) (Rate, bool) {
	key := normalize(model)
	if rate, ok := t.rates[key]; ok {
		return rate, true
	}
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		if rate, ok := t.rates[key[idx+1:]]; ok {
			return rate, true
		}
	}
	return t.fallback, false
}

// Cost returns the USD estimate for one call. Unknown models use the default rate.
func (t *Table) Cost(model string, inputTokens, outputTokens int64) float64 {
	rate, _ := t.Lookup(model)
	return float64(inputTokens)/1_000_000*rate.Input + float64(outputTokens)/1_000_000*rate.Output
}

// EstimateTokens approximates a token count at four bytes per token, rounded up.
func EstimateTokens(text string) int64 {
	n := int64(len(text))
	return (n + 3) / 4
}

func normalize(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}
