package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"specdebate/pkg/config"
	providertypes "specdebate/pkg/provider/types"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const defaultAPIKeyEnv = "OPENAI_API_KEY"

// Client completes prompts through the OpenAI Responses API.
type Client struct {
	client   osdk.Client
	settings providertypes.GenerationSettings
}

func New(cfg config.OpenAIProviderConfig, settings providertypes.GenerationSettings) (*Client, error) {
	apiKey := resolveAPIKey(cfg)
	if apiKey == "" {
		return nil, providertypes.NewError(providertypes.KindAuthMissing, apiKeyEnvName(cfg)+" is not set")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(cfg.Organization); organization != "" {
		opts = append(opts, option.WithOrganization(organization))
	}
	if project := strings.TrimSpace(cfg.Project); project != "" {
		opts = append(opts, option.WithProject(project))
	}

	return &Client{
		client:   osdk.NewClient(opts...),
		settings: settings,
	}, nil
}

// Complete sends one stateless prompt and returns the output text with usage.
func (c *Client) Complete(ctx context.Context, model string, prompt string) (providertypes.PromptResult, error) {
	log := providerLogger().With("operation", "complete")
	startedAt := time.Now()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return providertypes.PromptResult{}, errors.New("prompt is required")
	}

	normalizedModel, err := normalizeModel(model)
	if err != nil {
		return providertypes.PromptResult{}, err
	}
	log.Debug("provider request started", "model", normalizedModel, "prompt_length", len(prompt))

	params := responses.ResponseNewParams{
		Model: normalizedModel,
		Input: responses.ResponseNewParamsInputUnion{OfString: osdk.String(prompt)},
	}
	if c.settings.MaxOutputTokens > 0 {
		params.MaxOutputTokens = osdk.Int(c.settings.MaxOutputTokens)
	}
	if c.settings.Temperature > 0 {
		params.Temperature = osdk.Float(c.settings.Temperature)
	}

	response, err := c.client.Responses.New(ctx, params)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.PromptResult{}, classifyError(err)
	}

	text := strings.TrimSpace(response.OutputText())
	if text == "" {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no output text")
		return providertypes.PromptResult{}, providertypes.NewError(providertypes.KindMalformedResponse, "response contained no output text")
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))

	usage := providertypes.TokenUsage{
		InputTokens:     response.Usage.InputTokens,
		OutputTokens:    response.Usage.OutputTokens,
		TotalTokens:     response.Usage.TotalTokens,
		ReasoningTokens: response.Usage.OutputTokensDetails.ReasoningTokens,
		CacheReadTokens: response.Usage.InputTokensDetails.CachedTokens,
	}
	metadata := providertypes.PromptMetadata{
		Provider: "openai",
		Model:    normalizedModel,
	}
	if !usage.IsZero() {
		metadata.Usage = &usage
	}

	return providertypes.PromptResult{Text: text, Metadata: metadata}, nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "provider.openai")
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return providertypes.WrapError(providertypes.KindTimeout, err)
	}

	var apiErr *osdk.Error
	if errors.As(err, &apiErr) {
		detail := strings.TrimSpace(apiErr.Message)
		if detail == "" {
			detail = http.StatusText(apiErr.StatusCode)
		}
		return providertypes.StatusError(apiErr.StatusCode, detail)
	}

	return providertypes.WrapError(providertypes.KindProviderError, fmt.Errorf("responses request: %w", err))
}

func resolveAPIKey(cfg config.OpenAIProviderConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnv)); apiKey != "" {
			return apiKey
		}
	}

	return strings.TrimSpace(os.Getenv(defaultAPIKeyEnv))
}

func apiKeyEnvName(cfg config.OpenAIProviderConfig) string {
	if apiKeyEnv := strings.TrimSpace(cfg.APIKeyEnv); apiKeyEnv != "" {
		return apiKeyEnv + " or " + defaultAPIKeyEnv
	}
	return defaultAPIKeyEnv
}

func normalizeModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model is required")
	}

	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 {
		return model, nil
	}

	providerID := strings.TrimSpace(parts[0])
	modelID := strings.TrimSpace(parts[1])
	if providerID == "" || modelID == "" {
		return "", errors.New("model is invalid")
	}
	if providerID != "openai" {
		return "", fmt.Errorf("model provider %q is not supported by openai provider", providerID)
	}

	return modelID, nil
}
