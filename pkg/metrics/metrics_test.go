package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specdebate/pkg/debate"
)

func sampleResults() []debate.ModelResult {
	return []debate.ModelResult{
		{Model: "gpt-4o", Agreed: true, InputTokens: 1000, OutputTokens: 10, Cost: 0.0026, DurationMS: 1500},
		{Model: "xai/grok-3", Response: "change x", InputTokens: 800, OutputTokens: 300, Cost: 0.0069, DurationMS: 4000},
		{Model: "o1", Error: "timeout: no response within 1s", ErrorKind: "timeout", DurationMS: 1000},
	}
}

func TestObserveResults(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObserveResults(sampleResults())

	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.calls.WithLabelValues("gpt-4o", "agreed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.calls.WithLabelValues("xai/grok-3", "critiqued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.calls.WithLabelValues("o1", "timeout")))
	assert.Equal(t, 800.0, testutil.ToFloat64(recorder.tokens.WithLabelValues("xai/grok-3", "input")))
	assert.Equal(t, 300.0, testutil.ToFloat64(recorder.tokens.WithLabelValues("xai/grok-3", "output")))
	assert.InDelta(t, 0.0069, testutil.ToFloat64(recorder.cost.WithLabelValues("xai/grok-3")), 1e-12)
	assert.Equal(t, 0.0, testutil.ToFloat64(recorder.allAgreed))
	assert.Equal(t, 3, testutil.CollectAndCount(recorder.duration))

	recorder.ObserveResults([]debate.ModelResult{{Model: "gpt-4o", Agreed: true}})
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.allAgreed))
	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.calls.WithLabelValues("gpt-4o", "agreed")))
}

func TestWriteTextfile(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObserveResults(sampleResults())

	path := filepath.Join(t.TempDir(), "nested", "specdebate.prom")
	require.NoError(t, recorder.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.True(t, strings.Contains(text, `specdebate_model_calls_total{model="o1",outcome="timeout"} 1`), text)
	assert.Contains(t, text, "specdebate_round_all_agreed 0")
	assert.Contains(t, text, "specdebate_model_call_duration_seconds_bucket")
}
