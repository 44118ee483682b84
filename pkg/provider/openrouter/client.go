package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	providertypes "specdebate/pkg/provider/types"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	modelPrefix    = "openrouter/"
)

// Client talks to the OpenRouter chat completions API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	settings   providertypes.GenerationSettings
	logger     *slog.Logger
	sleepFn    func(context.Context, time.Duration)

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*ChatResponse]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the default OpenRouter base URL.
func WithBaseURL(url string) Option {
	return func(cl *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(url), "/"); trimmed != "" {
			cl.baseURL = trimmed
		}
	}
}

// WithGenerationSettings applies output limits to every request.
func WithGenerationSettings(settings providertypes.GenerationSettings) Option {
	return func(cl *Client) {
		cl.settings = settings
	}
}

// WithSleepFunc overrides the retry sleep function.
func WithSleepFunc(fn func(context.Context, time.Duration)) Option {
	return func(cl *Client) {
		cl.sleepFn = fn
	}
}

func defaultSleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// NewClient creates an OpenRouter client with the given API key and options.
//
// The HTTP client has no timeout of its own; callers bound requests through ctx.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		logger:     slog.Default().With("component", "provider.openrouter"),
		sleepFn:    defaultSleep,
		breakers:   make(map[string]*gobreaker.CircuitBreaker[*ChatResponse]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends prompt as a single user message and normalizes the reply.
func (c *Client) Complete(ctx context.Context, model string, prompt string) (providertypes.PromptResult, error) {
	modelID := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(model), modelPrefix))
	if modelID == "" {
		return providertypes.PromptResult{}, errors.New("model is required")
	}

	req := ChatRequest{
		Model:    modelID,
		Messages: []Message{{Role: "user", Content: prompt}},
	}
	if c.settings.MaxOutputTokens > 0 {
		maxTokens := c.settings.MaxOutputTokens
		req.MaxTokens = &maxTokens
	}
	if c.settings.Temperature > 0 {
		temp := c.settings.Temperature
		req.Temperature = &temp
	}

	resp, err := c.ChatCompletion(ctx, req)
	if err != nil {
		return providertypes.PromptResult{}, toProviderError(err)
	}

	text := strings.TrimSpace(resp.TextContent())
	if text == "" {
		return providertypes.PromptResult{}, providertypes.NewError(providertypes.KindMalformedResponse, "first choice has no content")
	}

	usage := providertypes.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	metadata := providertypes.PromptMetadata{Provider: "openrouter", Model: resp.Model}
	if !usage.IsZero() {
		metadata.Usage = &usage
	}

	return providertypes.PromptResult{Text: text, Metadata: metadata}, nil
}

// ChatCompletion makes one chat completion request with retries and circuit breaking.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	cb := c.getOrCreateBreaker(req.Model)

	resp, err := cb.Execute(func() (*ChatResponse, error) {
		return c.chatCompletionWithRetry(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return nil, &ClassifiedError{
				Type:    ErrProviderOverloaded,
				Message: fmt.Sprintf("circuit breaker open for model %s", req.Model),
			}
		}
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ClassifiedError{
				Type:    ErrRateLimit,
				Message: fmt.Sprintf("circuit breaker half-open, too many probes for model %s", req.Model),
			}
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) chatCompletionWithRetry(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.doRequest(ctx, req)
		if err == nil {
			return resp, nil
		}

		var classified *ClassifiedError
		if !errors.As(err, &classified) {
			return nil, err
		}

		if !classified.Retryable() || attempt >= classified.MaxRetries() {
			return nil, classified
		}

		delay := retryDelay(classified, attempt)
		c.logger.Warn("Retrying OpenRouter request",
			"model", req.Model,
			"error_type", classified.Type.String(),
			"attempt", attempt+1,
			"delay", delay,
		)

		c.sleepFn(ctx, delay)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

func (c *Client) doRequest(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ClassifiedError{Type: ErrTimeout, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ClassifiedError{
			Type:       ErrMalformedResponse,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("read response body: %v", err),
		}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &ClassifiedError{
			Type:       ErrMalformedResponse,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("parse response JSON: %v", err),
		}
	}

	if len(chatResp.Choices) == 0 {
		return nil, &ClassifiedError{
			Type:       ErrMalformedResponse,
			StatusCode: resp.StatusCode,
			Message:    "response contains no choices",
		}
	}

	return &chatResp, nil
}

// retryDelay is exponential backoff with jitter, honoring Retry-After for rate limits.
func retryDelay(err *ClassifiedError, attempt int) time.Duration {
	if err.Type == ErrRateLimit && err.RetryAfter > 0 {
		return jitter(err.RetryAfter)
	}

	base := time.Second * time.Duration(1<<uint(attempt))
	if base > 16*time.Second {
		base = 16 * time.Second
	}
	return jitter(base)
}

// jitter returns d scaled by a random factor in [0.5, 1.5).
func jitter(d time.Duration) time.Duration {
	factor := 0.5 + rand.Float64()
	return time.Duration(float64(d) * factor)
}

func (c *Client) getOrCreateBreaker(model string) *gobreaker.CircuitBreaker[*ChatResponse] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[model]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[*ChatResponse](gobreaker.Settings{
		Name:        "openrouter-" + model,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("Circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Caller-side rejections are not provider outages.
			var classified *ClassifiedError
			if !errors.As(err, &classified) {
				return false
			}
			switch classified.Type {
			case ErrAuth, ErrContentFiltered, ErrContextTooLong:
				return true
			default:
				return false
			}
		},
	})

	c.breakers[model] = cb
	return cb
}

func toProviderError(err error) error {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return &providertypes.Error{
			Kind:       classified.Kind(),
			Detail:     classified.Message,
			StatusCode: classified.StatusCode,
			Err:        classified,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return providertypes.WrapError(providertypes.KindTimeout, err)
	}
	return providertypes.WrapError(providertypes.KindProviderError, err)
}
