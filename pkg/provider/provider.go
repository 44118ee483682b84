package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"specdebate/pkg/config"
	providerfantasy "specdebate/pkg/provider/fantasy"
	provideropenai "specdebate/pkg/provider/openai"
	"specdebate/pkg/provider/opencode"
	"specdebate/pkg/provider/openrouter"
	providertypes "specdebate/pkg/provider/types"
)

// Client completes a single prompt against one model.
type Client interface {
	Complete(ctx context.Context, model string, prompt string) (providertypes.PromptResult, error)
}

// Router implements Client by picking an adapter per provider family.
//
// Adapters are built on first use and reused for the rest of the process.
type Router struct {
	cfg      config.ProvidersConfig
	settings providertypes.GenerationSettings
	factory  func(family Family) (Client, error)

	mu       sync.RWMutex
	adapters map[string]Client
}

// NewRouter builds a router over the configured provider families.
func NewRouter(cfg *config.Config) *Router {
	r := &Router{
		cfg: cfg.Providers,
		settings: providertypes.GenerationSettings{
			MaxOutputTokens: int64(cfg.Debate.MaxOutputTokens),
			Temperature:     cfg.Debate.Temperature,
		},
		adapters: make(map[string]Client),
	}
	r.factory = r.newAdapter
	return r
}

func (r *Router) Complete(ctx context.Context, model string, prompt string) (providertypes.PromptResult, error) {
	family := Resolve(model)
	adapter, err := r.adapter(family)
	if err != nil {
		return providertypes.PromptResult{}, err
	}

	return adapter.Complete(ctx, model, prompt)
}

func (r *Router) adapter(family Family) (Client, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[family.ID]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if adapter, ok := r.adapters[family.ID]; ok {
		return adapter, nil
	}

	slog.Default().With("component", "provider.router").Debug("Creating provider adapter", "family", family.ID)

	adapter, err := r.factory(family)
	if err != nil {
		return nil, err
	}
	r.adapters[family.ID] = adapter
	return adapter, nil
}

func (r *Router) newAdapter(family Family) (Client, error) {
	switch family.Kind {
	case KindOpenAI:
		return provideropenai.New(r.cfg.OpenAI, r.settings)
	case KindOpenRouter:
		apiKeyEnv := firstNonEmpty(r.cfg.OpenRouter.APIKeyEnv, family.APIKeyEnv)
		apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv))
		if apiKey == "" {
			return nil, providertypes.NewError(providertypes.KindAuthMissing, apiKeyEnv+" is not set")
		}
		return openrouter.NewClient(apiKey,
			openrouter.WithBaseURL(firstNonEmpty(r.cfg.OpenRouter.BaseURL, family.BaseURL)),
			openrouter.WithGenerationSettings(r.settings),
		), nil
	case KindOpenCode:
		return opencode.New(r.cfg.OpenCode)
	case KindCompatible:
		override := r.cfg.Compatible[family.ID]
		apiKeyEnv := firstNonEmpty(override.APIKeyEnv, family.APIKeyEnv)
		return providerfantasy.New(providerfantasy.Options{
			Family:   family.ID,
			BaseURL:  firstNonEmpty(override.BaseURL, family.BaseURL),
			APIKey:   strings.TrimSpace(os.Getenv(apiKeyEnv)),
			Settings: r.settings,
		})
	default:
		return nil, fmt.Errorf("unsupported provider family: %s", family.ID)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
