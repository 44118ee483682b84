// Package cost accumulates token usage and estimated spend for one invocation.
package cost

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ModelUsage is the cumulative usage of one model.
type ModelUsage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Summary is a point-in-time copy of the tracker totals.
type Summary struct {
	Total        float64               `json:"total"`
	InputTokens  int64                 `json:"input_tokens"`
	OutputTokens int64                 `json:"output_tokens"`
	ByModel      map[string]ModelUsage `json:"by_model"`
}

// Tracker is safe for concurrent use. The zero value is ready to use.
type Tracker struct {
	mu           sync.Mutex
	totalCost    float64
	inputTokens  int64
	outputTokens int64
	byModel      map[string]ModelUsage
}

func NewTracker() *Tracker {
	return &Tracker{byModel: make(map[string]ModelUsage)}
}

// Add records one completed call. Totals and the per-model entry move together.
func (t *Tracker) Add(model string, inputTokens, outputTokens int64, usd float64) {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	if usd < 0 {
		usd = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.byModel == nil {
		t.byModel = make(map[string]ModelUsage)
	}

	t.totalCost += usd
	t.inputTokens += inputTokens
	t.outputTokens += outputTokens

	usage := t.byModel[model]
	usage.InputTokens += inputTokens
	usage.OutputTokens += outputTokens
	usage.Cost += usd
	t.byModel[model] = usage
}

// Summary returns a copy of the current totals.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	byModel := make(map[string]ModelUsage, len(t.byModel))
	for model, usage := range t.byModel {
		byModel[model] = usage
	}

	return Summary{
		Total:        t.totalCost,
		InputTokens:  t.inputTokens,
		OutputTokens: t.outputTokens,
		ByModel:      byModel,
	}
}

// Format renders the summary as the plain-text block printed after a round.
func (s Summary) Format() string {
	if s.InputTokens == 0 && s.OutputTokens == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("=== Cost Summary ===\n")
	fmt.Fprintf(&b, "Total tokens: %s in / %s out\n", groupDigits(s.InputTokens), groupDigits(s.OutputTokens))
	fmt.Fprintf(&b, "Total cost: $%.4f\n", s.Total)

	if len(s.ByModel) > 1 {
		b.WriteString("\nBy model:\n")
		for _, model := range s.Models() {
			usage := s.ByModel[model]
			fmt.Fprintf(&b, "  %s: $%.4f (%s in / %s out)\n",
				model, usage.Cost, groupDigits(usage.InputTokens), groupDigits(usage.OutputTokens))
		}
	}

	return b.String()
}

// Models returns the tracked model ids in sorted order.
func (s Summary) Models() []string {
	models := make([]string, 0, len(s.ByModel))
	for model := range s.ByModel {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

func groupDigits(n int64) string {
	raw := fmt.Sprintf("%d", n)
	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	var b strings.Builder
	for i, r := range raw {
		if i > 0 && (len(raw)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}
