package opencode

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"specdebate/pkg/config"
	providertypes "specdebate/pkg/provider/types"

	sdk "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"
)

const sessionTitle = "specdebate critique"

// Client routes prompts through a running opencode server, one session per call.
type Client struct {
	client *sdk.Client
}

func New(cfg config.OpenCodeProviderConfig) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, providertypes.NewError(providertypes.KindAuthMissing, "providers.opencode.base_url is not configured")
	}

	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if authHeader, ok := buildBasicAuthHeader(cfg); ok {
		opts = append(opts, option.WithHeader("Authorization", authHeader))
	}

	return &Client{client: sdk.NewClient(opts...)}, nil
}

// Complete opens a fresh session, prompts it once and returns the text parts.
func (c *Client) Complete(ctx context.Context, model string, prompt string) (providertypes.PromptResult, error) {
	log := providerLogger().With("operation", "complete")
	startedAt := time.Now()

	providerID, modelID, ok := parseModelRef(model)
	if !ok {
		return providertypes.PromptResult{}, fmt.Errorf("model %q must look like opencode/<provider>/<model>", model)
	}
	log.Debug("provider request started",
		"provider_id", providerID,
		"model", modelID,
		"prompt_length", len(strings.TrimSpace(prompt)),
	)

	session, err := c.client.Session.New(ctx, sdk.SessionNewParams{Title: sdk.F(sessionTitle)})
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.PromptResult{}, classifyError(fmt.Errorf("create session: %w", err))
	}
	if session.ID == "" {
		return providertypes.PromptResult{}, providertypes.NewError(providertypes.KindMalformedResponse, "create session returned empty session id")
	}

	params := sdk.SessionPromptParams{
		Parts: sdk.F([]sdk.SessionPromptParamsPartUnion{
			sdk.TextPartInputParam{
				Type: sdk.F(sdk.TextPartInputTypeText),
				Text: sdk.F(prompt),
			},
		}),
		Model: sdk.F(sdk.SessionPromptParamsModel{
			ProviderID: sdk.F(providerID),
			ModelID:    sdk.F(modelID),
		}),
	}

	response, err := c.client.Session.Prompt(ctx, session.ID, params)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.PromptResult{}, classifyError(fmt.Errorf("prompt: %w", err))
	}

	text := extractText(response.Parts)
	if text == "" {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no text parts")
		return providertypes.PromptResult{}, providertypes.NewError(providertypes.KindMalformedResponse, "response contained no text parts")
	}
	log.Debug("provider request completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"response_length", len(text),
		"parts_count", len(response.Parts),
	)

	usage := providertypes.TokenUsage{
		InputTokens:     tokenCount(response.Info.Tokens.Input),
		OutputTokens:    tokenCount(response.Info.Tokens.Output),
		TotalTokens:     tokenCount(response.Info.Tokens.Input) + tokenCount(response.Info.Tokens.Output),
		ReasoningTokens: tokenCount(response.Info.Tokens.Reasoning),
		CacheReadTokens: tokenCount(response.Info.Tokens.Cache.Read),
	}
	var usagePtr *providertypes.TokenUsage
	if !usage.IsZero() {
		usagePtr = &usage
	}

	return providertypes.PromptResult{
		Text: text,
		Metadata: providertypes.PromptMetadata{
			Provider: strings.TrimSpace(response.Info.ProviderID),
			Model:    strings.TrimSpace(response.Info.ModelID),
			Usage:    usagePtr,
		},
	}, nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "provider.opencode")
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return providertypes.WrapError(providertypes.KindTimeout, err)
	}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return providertypes.StatusError(apiErr.StatusCode, err.Error())
	}

	return providertypes.WrapError(providertypes.KindProviderError, err)
}

func buildBasicAuthHeader(cfg config.OpenCodeProviderConfig) (string, bool) {
	passwordEnv := strings.TrimSpace(cfg.PasswordEnv)
	if passwordEnv == "" {
		return "", false
	}

	password := strings.TrimSpace(os.Getenv(passwordEnv))
	if password == "" {
		return "", false
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "opencode"
	}

	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token, true
}

// parseModelRef accepts opencode/<provider>/<model> and <provider>/<model>.
func parseModelRef(input string) (providerID string, modelID string, ok bool) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "opencode/")
	parts := strings.SplitN(input, "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}

	providerID = strings.TrimSpace(parts[0])
	modelID = strings.TrimSpace(parts[1])
	if providerID == "" || modelID == "" {
		return "", "", false
	}

	return providerID, modelID, true
}

func extractText(parts []sdk.Part) string {
	var lines []string
	for _, part := range parts {
		if part.Type == sdk.PartTypeText {
			text := strings.TrimSpace(part.Text)
			if text != "" {
				lines = append(lines, text)
			}
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func tokenCount(value float64) int64 {
	if value <= 0 {
		return 0
	}

	return int64(math.Round(value))
}
