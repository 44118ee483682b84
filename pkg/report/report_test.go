package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specdebate/pkg/cost"
	"specdebate/pkg/debate"
)

func sampleDocument() Document {
	results := []debate.ModelResult{
		{Model: "m1", Agreed: true, InputTokens: 100, OutputTokens: 3, Cost: 0.001},
		{Model: "m2", Response: "Change the retry policy to exponential backoff.", InputTokens: 120, OutputTokens: 40, Cost: 0.002},
		{Model: "m3", Error: "timeout: no response within 1s", ErrorKind: "timeout"},
	}

	tracker := cost.NewTracker()
	tracker.Add("m1", 100, 3, 0.001)
	tracker.Add("m2", 120, 40, 0.002)

	return NewDocument(Round{
		Number:  2,
		DocType: "prd",
		Models:  []string{"m1", "m2", "m3"},
		Focus:   "security",
	}, results, tracker.Summary())
}

func TestWriteJSONShape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleDocument()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, false, decoded["all_agreed"])
	assert.Equal(t, 2.0, decoded["round"])
	assert.Equal(t, "prd", decoded["doc_type"])
	assert.Equal(t, "security", decoded["focus"])
	assert.Nil(t, decoded["persona"])
	assert.Contains(t, decoded, "persona")
	assert.Equal(t, false, decoded["preserve_intent"])

	results := decoded["results"].([]any)
	require.Len(t, results, 3)
	first := results[0].(map[string]any)
	assert.Equal(t, "m1", first["model"])
	assert.Equal(t, "", first["response"])
	assert.NotContains(t, first, "error")
	third := results[2].(map[string]any)
	assert.Equal(t, "timeout", third["error_kind"])

	costDoc := decoded["cost"].(map[string]any)
	assert.Equal(t, 220.0, costDoc["input_tokens"])
	assert.Contains(t, costDoc["by_model"], "m2")
}

func TestNewDocumentEmptyInputsEncodeAsLists(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, NewDocument(Round{Number: 1}, nil, cost.Summary{})))
	assert.Contains(t, buf.String(), `"results": []`)
	assert.Contains(t, buf.String(), `"by_model": {}`)
}

func TestWriteTextPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleDocument(), TextOptions{}))
	out := buf.String()

	wantInOrder := []string{
		"=== Round 2 Results (Product Requirements Document) ===",
		"--- m1 ---\n[AGREE]\n",
		"--- m2 ---\nChange the retry policy to exponential backoff.\n",
		"--- m3 ---\nERROR: timeout: no response within 1s\n",
		"Agreed: m1\n",
		"Critiqued: m2\n",
		"=== Cost Summary ===",
	}
	last := -1
	for _, want := range wantInOrder {
		idx := strings.Index(out, want)
		require.GreaterOrEqual(t, idx, 0, "missing %q in:\n%s", want, out)
		require.Greater(t, idx, last, "%q out of order", want)
		last = idx
	}
	assert.NotContains(t, out, "ALL MODELS AGREE")
	assert.NotContains(t, out, "\x1b[")
}

func TestWriteTextConsensus(t *testing.T) {
	doc := NewDocument(Round{Number: 1, DocType: "tech"}, []debate.ModelResult{{Model: "a", Agreed: true}}, cost.Summary{})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, doc, TextOptions{}))
	assert.Contains(t, buf.String(), "=== ALL MODELS AGREE ===")
	assert.NotContains(t, buf.String(), "Agreed:")
	assert.NotContains(t, buf.String(), "Cost Summary")
}

func TestSummary(t *testing.T) {
	got := Summary(sampleDocument())

	assert.True(t, strings.HasPrefix(got, "Spec debate round 2 (Product Requirements Document)"))
	assert.Contains(t, got, "Agreed: m1")
	assert.Contains(t, got, "Critiqued: m2")
	assert.Contains(t, got, "Failed: m3 (timeout)")
	assert.Contains(t, got, "[m2]\nChange the retry policy")
	assert.Contains(t, got, "Cost: $0.0030 (220 in / 43 out tokens)")
}

func TestFirstLines(t *testing.T) {
	assert.Equal(t, "a\nb", firstLines("a\nb\n", 3))
	assert.Equal(t, "a\nb\n…", firstLines("a\nb\nc\nd", 2))
}
