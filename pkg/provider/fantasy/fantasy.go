package fantasy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	core "charm.land/fantasy"
	provideropenai "charm.land/fantasy/providers/openai"

	providertypes "specdebate/pkg/provider/types"
)

type languageModelProvider interface {
	LanguageModel(ctx context.Context, modelID string) (core.LanguageModel, error)
}

// Options selects one OpenAI-compatible endpoint.
type Options struct {
	Family   string
	BaseURL  string
	APIKey   string
	Settings providertypes.GenerationSettings
}

// Client completes prompts against an OpenAI-compatible chat endpoint.
type Client struct {
	provider        languageModelProvider
	family          string
	maxOutputTokens *int64
	temperature     *float64
	generate        func(context.Context, core.LanguageModel, core.AgentCall) (*core.AgentResult, error)
}

func New(opts Options) (*Client, error) {
	family := strings.TrimSpace(opts.Family)
	if family == "" {
		return nil, errors.New("provider family is required")
	}

	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, providertypes.NewError(providertypes.KindAuthMissing, "no API key configured for "+family)
	}

	providerOptions := []provideropenai.Option{provideropenai.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		providerOptions = append(providerOptions, provideropenai.WithBaseURL(baseURL))
	}

	fantasyProvider, err := provideropenai.New(providerOptions...)
	if err != nil {
		return nil, fmt.Errorf("initialize %s provider: %w", family, err)
	}

	client := &Client{
		provider: fantasyProvider,
		family:   family,
		generate: generateWithFantasyAgent,
	}
	if opts.Settings.MaxOutputTokens > 0 {
		maxTokens := opts.Settings.MaxOutputTokens
		client.maxOutputTokens = &maxTokens
	}
	if opts.Settings.Temperature > 0 {
		temp := opts.Settings.Temperature
		client.temperature = &temp
	}

	return client, nil
}

// Complete sends one stateless prompt and returns the generated text with usage.
func (c *Client) Complete(ctx context.Context, model string, prompt string) (providertypes.PromptResult, error) {
	log := slog.Default().With("component", "provider.fantasy", "family", c.family)
	startedAt := time.Now()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return providertypes.PromptResult{}, errors.New("prompt is required")
	}

	modelID, err := normalizeModel(c.family, model)
	if err != nil {
		return providertypes.PromptResult{}, err
	}
	log.Debug("provider request started", "model", modelID, "prompt_length", len(prompt))

	languageModel, err := c.provider.LanguageModel(ctx, modelID)
	if err != nil {
		return providertypes.PromptResult{}, classifyError(fmt.Errorf("resolve language model: %w", err))
	}

	call := core.AgentCall{Prompt: prompt}
	if c.maxOutputTokens != nil {
		call.MaxOutputTokens = c.maxOutputTokens
	}
	if c.temperature != nil {
		call.Temperature = c.temperature
	}

	generate := c.generate
	if generate == nil {
		generate = generateWithFantasyAgent
	}

	result, err := generate(ctx, languageModel, call)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.PromptResult{}, classifyError(err)
	}
	if result == nil {
		return providertypes.PromptResult{}, providertypes.NewError(providertypes.KindMalformedResponse, "generation returned no result")
	}

	response := extractText(result.Response.Content)
	if response == "" {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no text content")
		return providertypes.PromptResult{}, providertypes.NewError(providertypes.KindMalformedResponse, "response contained no text content")
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(response))

	usage := providertypes.TokenUsage{
		InputTokens:     result.TotalUsage.InputTokens,
		OutputTokens:    result.TotalUsage.OutputTokens,
		TotalTokens:     result.TotalUsage.TotalTokens,
		ReasoningTokens: result.TotalUsage.ReasoningTokens,
		CacheReadTokens: result.TotalUsage.CacheReadTokens,
	}

	metadata := providertypes.PromptMetadata{
		Provider: c.family,
		Model:    modelID,
	}
	if !usage.IsZero() {
		metadata.Usage = &usage
	}

	return providertypes.PromptResult{
		Text:     response,
		Metadata: metadata,
	}, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return providertypes.WrapError(providertypes.KindTimeout, err)
	}
	return providertypes.WrapError(providertypes.KindProviderError, err)
}

// normalizeModel strips the family routing prefix, keeping vendor model ids intact.
func normalizeModel(family string, model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model is required")
	}

	if rest, ok := strings.CutPrefix(model, family+"/"); ok {
		model = strings.TrimSpace(rest)
		if model == "" {
			return "", errors.New("model is invalid")
		}
	}

	return model, nil
}

func extractText(content core.ResponseContent) string {
	lines := make([]string, 0)
	for _, part := range content {
		if part.GetType() != core.ContentTypeText {
			continue
		}

		textPart, ok := core.AsContentType[core.TextContent](part)
		if !ok {
			continue
		}

		line := strings.TrimSpace(textPart.Text)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func generateWithFantasyAgent(ctx context.Context, model core.LanguageModel, call core.AgentCall) (*core.AgentResult, error) {
	runtime := core.NewAgent(model)
	return runtime.Generate(ctx, call)
}
