package debate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"specdebate/pkg/cost"
	"specdebate/pkg/pricing"
	"specdebate/pkg/prompts"
	"specdebate/pkg/provider"
	providertypes "specdebate/pkg/provider/types"
)

// Caller turns one CallRequest into exactly one ModelResult.
type Caller struct {
	client  provider.Client
	pricing *pricing.Table
	tracker *cost.Tracker
	logger  *slog.Logger
}

// NewCaller wires a caller. A nil table uses the built-in rates and a nil
// tracker records nothing.
func NewCaller(client provider.Client, table *pricing.Table, tracker *cost.Tracker, logger *slog.Logger) *Caller {
	if table == nil {
		table = pricing.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Caller{
		client:  client,
		pricing: table,
		tracker: tracker,
		logger:  logger.With("component", "debate.caller"),
	}
}

type completion struct {
	result providertypes.PromptResult
	err    error
}

// Call never returns an error: every failure ends up in ModelResult.Error.
func (c *Caller) Call(ctx context.Context, req CallRequest) ModelResult {
	start := time.Now()

	prompt, err := prompts.Compose(prompts.CritiqueInput{
		Spec:           req.Spec,
		Round:          req.Round,
		DocType:        req.DocType,
		Press:          req.Press,
		Focus:          req.Focus,
		Persona:        req.Persona,
		Context:        req.Context,
		PreserveIntent: req.PreserveIntent,
	})
	if err != nil {
		return failedResult(req.Model, providertypes.WrapError(providertypes.KindInternal, err), time.Since(start))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so the goroutine can finish after a timeout without leaking.
	done := make(chan completion, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- completion{err: providertypes.NewError(providertypes.KindInternal, fmt.Sprintf("provider panic: %v", recovered))}
			}
		}()

		result, err := c.client.Complete(callCtx, req.Model, prompt)
		done <- completion{result: result, err: err}
	}()

	var out completion
	select {
	case out = <-done:
	case <-callCtx.Done():
		out.err = contextError(ctx, callCtx.Err(), timeout)
	}

	elapsed := time.Since(start)
	if out.err != nil {
		c.logger.Warn("model call failed", "model", req.Model, "error", out.err, "duration", elapsed)
		return failedResult(req.Model, out.err, elapsed)
	}

	text := strings.TrimSpace(out.result.Text)
	if text == "" {
		err := providertypes.NewError(providertypes.KindMalformedResponse, "empty response text")
		c.logger.Warn("model call failed", "model", req.Model, "error", err, "duration", elapsed)
		return failedResult(req.Model, err, elapsed)
	}

	inputTokens, outputTokens := tokenCounts(out.result.Metadata.Usage, prompt, text)
	usd := c.pricing.Cost(req.Model, inputTokens, outputTokens)
	if c.tracker != nil {
		c.tracker.Add(req.Model, inputTokens, outputTokens, usd)
	}

	agreed := IsAgreement(text)
	result := ModelResult{
		Model:        req.Model,
		Agreed:       agreed,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         usd,
		DurationMS:   elapsed.Milliseconds(),
	}
	if !agreed {
		result.Response = text
		result.Spec = ExtractSpec(text)
	}

	c.logger.Debug("model call completed",
		"model", req.Model,
		"agreed", agreed,
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
		"duration", elapsed,
	)

	return result
}

// contextError reports why the call context ended. Only an expired
// per-call timeout is described as such; parent expiry or cancellation is
// wrapped as is.
func contextError(parent context.Context, err error, timeout time.Duration) error {
	if parent.Err() != nil {
		return providertypes.WrapError(providertypes.KindTimeout, context.Cause(parent))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &providertypes.Error{
			Kind:   providertypes.KindTimeout,
			Detail: fmt.Sprintf("no response within %s", timeout),
			Err:    err,
		}
	}
	return providertypes.WrapError(providertypes.KindTimeout, err)
}

// tokenCounts prefers provider-reported usage and estimates whatever is missing.
func tokenCounts(usage *providertypes.TokenUsage, prompt string, text string) (int64, int64) {
	var inputTokens, outputTokens int64
	if usage != nil {
		inputTokens = usage.InputTokens
		outputTokens = usage.OutputTokens
	}
	if inputTokens <= 0 {
		inputTokens = pricing.EstimateTokens(prompt)
	}
	if outputTokens <= 0 {
		outputTokens = pricing.EstimateTokens(text)
	}
	return inputTokens, outputTokens
}
