package provider

import (
	"os"
	"strings"

	"specdebate/pkg/provider/openrouter"
)

// AdapterKind selects which client implementation serves a family.
type AdapterKind int

const (
	KindOpenAI AdapterKind = iota
	KindCompatible
	KindOpenRouter
	KindOpenCode
)

// Family describes one provider family and how its credentials are found.
type Family struct {
	ID        string
	Name      string
	Kind      AdapterKind
	APIKeyEnv string
	BaseURL   string
	Prefixes  []string
	Example   string
}

var families = []Family{
	{ID: "openai", Name: "OpenAI", Kind: KindOpenAI, APIKeyEnv: "OPENAI_API_KEY", Prefixes: []string{"openai/", "gpt-", "o1", "o3", "o4", "chatgpt-"}, Example: "gpt-4o, o1"},
	{ID: "anthropic", Name: "Anthropic", Kind: KindCompatible, APIKeyEnv: "ANTHROPIC_API_KEY", BaseURL: "https://api.anthropic.com/v1/", Prefixes: []string{"anthropic/", "claude-"}, Example: "claude-sonnet-4-20250514"},
	{ID: "gemini", Name: "Google", Kind: KindCompatible, APIKeyEnv: "GEMINI_API_KEY", BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/", Prefixes: []string{"gemini/"}, Example: "gemini/gemini-2.0-flash"},
	{ID: "xai", Name: "xAI", Kind: KindCompatible, APIKeyEnv: "XAI_API_KEY", BaseURL: "https://api.x.ai/v1", Prefixes: []string{"xai/"}, Example: "xai/grok-3"},
	{ID: "mistral", Name: "Mistral", Kind: KindCompatible, APIKeyEnv: "MISTRAL_API_KEY", BaseURL: "https://api.mistral.ai/v1", Prefixes: []string{"mistral/"}, Example: "mistral/mistral-large"},
	{ID: "groq", Name: "Groq", Kind: KindCompatible, APIKeyEnv: "GROQ_API_KEY", BaseURL: "https://api.groq.com/openai/v1", Prefixes: []string{"groq/"}, Example: "groq/llama-3.3-70b-versatile"},
	{ID: "together_ai", Name: "Together", Kind: KindCompatible, APIKeyEnv: "TOGETHER_API_KEY", BaseURL: "https://api.together.xyz/v1", Prefixes: []string{"together_ai/"}, Example: "together_ai/meta-llama/Llama-3-70b-chat-hf"},
	{ID: "deepseek", Name: "Deepseek", Kind: KindCompatible, APIKeyEnv: "DEEPSEEK_API_KEY", BaseURL: "https://api.deepseek.com/v1", Prefixes: []string{"deepseek/"}, Example: "deepseek/deepseek-chat"},
	{ID: "openrouter", Name: "OpenRouter", Kind: KindOpenRouter, APIKeyEnv: "OPENROUTER_API_KEY", BaseURL: openrouter.DefaultBaseURL, Prefixes: []string{"openrouter/"}, Example: "openrouter/anthropic/claude-3.5-sonnet"},
	{ID: "opencode", Name: "opencode server", Kind: KindOpenCode, Prefixes: []string{"opencode/"}, Example: "opencode/anthropic/claude-sonnet-4-20250514"},
}

// Families returns the provider catalog in display order.
func Families() []Family {
	out := make([]Family, len(families))
	copy(out, families)
	return out
}

// Resolve picks the family serving model. Unknown identifiers go to OpenAI.
//
// Routing prefixes with a slash are checked before bare vendor prefixes so
// "openrouter/openai/gpt-4o" never lands on the OpenAI adapter.
func Resolve(model string) Family {
	normalized := strings.ToLower(strings.TrimSpace(model))

	for _, family := range families {
		for _, prefix := range family.Prefixes {
			if strings.HasSuffix(prefix, "/") && strings.HasPrefix(normalized, prefix) {
				return family
			}
		}
	}
	for _, family := range families {
		for _, prefix := range family.Prefixes {
			if !strings.HasSuffix(prefix, "/") && strings.HasPrefix(normalized, prefix) {
				return family
			}
		}
	}

	return families[0]
}

// Configured reports whether the family's credential env var is set.
func (f Family) Configured() bool {
	if f.APIKeyEnv == "" {
		return false
	}
	return strings.TrimSpace(os.Getenv(f.APIKeyEnv)) != ""
}
