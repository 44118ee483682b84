package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	providertypes "specdebate/pkg/provider/types"
)

func noSleep(_ context.Context, _ time.Duration) {}

func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithSleepFunc(noSleep),
	}, opts...)
	return NewClient("test-key", opts...)
}

func validChatResponse(content string) []byte {
	resp := ChatResponse{
		ID:    "gen-test",
		Model: "anthropic/claude-3.5-sonnet",
		Choices: []Choice{{
			Message:      Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
	b, _ := json.Marshal(resp)
	return b
}

func TestCompleteSendsSingleUserMessage(t *testing.T) {
	var got ChatRequest
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(validChatResponse("  Add a rollback section.  "))
	}, WithGenerationSettings(providertypes.GenerationSettings{MaxOutputTokens: 2000}))

	result, err := client.Complete(context.Background(), "openrouter/anthropic/claude-3.5-sonnet", "review")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	if got.Model != "anthropic/claude-3.5-sonnet" {
		t.Fatalf("request model = %q", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Content != "review" {
		t.Fatalf("request messages = %+v", got.Messages)
	}
	if got.MaxTokens == nil || *got.MaxTokens != 2000 {
		t.Fatalf("request max_tokens = %v, want 2000", got.MaxTokens)
	}
	if result.Text != "Add a rollback section." {
		t.Fatalf("text = %q", result.Text)
	}
	if result.Metadata.Usage == nil || result.Metadata.Usage.InputTokens != 10 || result.Metadata.Usage.OutputTokens != 5 {
		t.Fatalf("usage = %+v", result.Metadata.Usage)
	}
}

func TestCompleteMapsErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   providertypes.Kind
	}{
		{name: "rejected key", status: http.StatusUnauthorized, body: `{"error":{"message":"invalid api key"}}`, want: providertypes.KindProviderError},
		{name: "content filter", status: http.StatusBadRequest, body: `{"error":{"message":"flagged","code":"content_filter"}}`, want: providertypes.KindProviderError},
		{name: "malformed", status: http.StatusOK, body: `not json`, want: providertypes.KindMalformedResponse},
		{name: "no choices", status: http.StatusOK, body: `{"id":"x","choices":[]}`, want: providertypes.KindMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Complete(context.Background(), "openrouter/test-model", "review")
			if err == nil {
				t.Fatal("expected error")
			}
			if kind := providertypes.KindOf(err); kind != tt.want {
				t.Fatalf("kind = %q, want %q (err: %v)", kind, tt.want, err)
			}
		})
	}
}

func TestChatCompletionRetriesRateLimit(t *testing.T) {
	var attempts atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(validChatResponse("success after retry"))
	})

	resp, err := client.ChatCompletion(context.Background(), ChatRequest{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "test"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TextContent() != "success after retry" {
		t.Fatalf("text = %q", resp.TextContent())
	}
	if attempts.Load() != 3 {
		t.Fatalf("attempts = %d, want 3", attempts.Load())
	}
}

func TestChatCompletionAuthErrorIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	})

	_, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "test-model"})
	classified, ok := err.(*ClassifiedError)
	if !ok {
		t.Fatalf("expected ClassifiedError, got %T", err)
	}
	if classified.Type != ErrAuth {
		t.Fatalf("type = %s, want auth_error", classified.Type)
	}
	if attempts.Load() != 1 {
		t.Fatalf("attempts = %d, want 1", attempts.Load())
	}
}

func TestCircuitBreakerTripsPerModel(t *testing.T) {
	var badAttempts atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Model == "bad-model" {
			badAttempts.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"service unavailable"}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(validChatResponse("ok from good model"))
	})

	for i := 0; i < 3; i++ {
		if _, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "bad-model"}); err == nil {
			t.Fatalf("call %d: expected error", i+1)
		}
	}

	before := badAttempts.Load()
	_, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "bad-model"})
	if err == nil {
		t.Fatal("expected circuit breaker error")
	}
	if badAttempts.Load() != before {
		t.Fatal("expected no additional HTTP requests while the circuit is open")
	}

	resp, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "good-model"})
	if err != nil {
		t.Fatalf("good-model should not be affected: %v", err)
	}
	if resp.TextContent() != "ok from good model" {
		t.Fatalf("text = %q", resp.TextContent())
	}
}

func TestChatCompletionHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	// Registered after the server so it runs before srv.Close.
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Complete(ctx, "test-model", "review")
	if kind := providertypes.KindOf(err); kind != providertypes.KindTimeout {
		t.Fatalf("kind = %q, want timeout (err: %v)", kind, err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("call returned after %s, want it bounded by the context deadline", elapsed)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{header: "", want: 0},
		{header: "3", want: 3 * time.Second},
		{header: "soon", want: 0},
		{header: "-1", want: 0},
	}

	for _, tt := range tests {
		if got := parseRetryAfter(tt.header); got != tt.want {
			t.Fatalf("parseRetryAfter(%q) = %s, want %s", tt.header, got, tt.want)
		}
	}
}

func TestJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		got := jitter(time.Second)
		if got < 500*time.Millisecond || got >= 1500*time.Millisecond {
			t.Fatalf("jitter(1s) = %s, out of [0.5s, 1.5s)", got)
		}
	}
}
