package debate

import (
	"context"
	"sync"
	"time"

	providertypes "specdebate/pkg/provider/types"
)

type fakeReply struct {
	text   string
	usage  *providertypes.TokenUsage
	err    error
	delay  time.Duration
	panics bool
	// ignoreContext makes the fake sleep through cancellation.
	ignoreContext bool
}

type fakeClient struct {
	mu      sync.Mutex
	replies map[string]fakeReply
	prompts map[string]string
}

func newFakeClient(replies map[string]fakeReply) *fakeClient {
	return &fakeClient{replies: replies, prompts: make(map[string]string)}
}

func (f *fakeClient) Complete(ctx context.Context, model string, prompt string) (providertypes.PromptResult, error) {
	f.mu.Lock()
	reply := f.replies[model]
	f.prompts[model] = prompt
	f.mu.Unlock()

	if reply.panics {
		panic("adapter exploded")
	}

	if reply.delay > 0 {
		if reply.ignoreContext {
			time.Sleep(reply.delay)
		} else {
			select {
			case <-time.After(reply.delay):
			case <-ctx.Done():
				return providertypes.PromptResult{}, ctx.Err()
			}
		}
	}

	if reply.err != nil {
		return providertypes.PromptResult{}, reply.err
	}

	return providertypes.PromptResult{
		Text: reply.text,
		Metadata: providertypes.PromptMetadata{
			Provider: "fake",
			Model:    model,
			Usage:    reply.usage,
		},
	}, nil
}

func (f *fakeClient) promptFor(model string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[model]
}

func usage(input, output int64) *providertypes.TokenUsage {
	return &providertypes.TokenUsage{InputTokens: input, OutputTokens: output, TotalTokens: input + output}
}
