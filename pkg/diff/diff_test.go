package diff

import (
	"strings"
	"testing"
)

func TestGenerateIdenticalIsEmpty(t *testing.T) {
	for _, text := range []string{"", "one line", "a\nb\nc\n", strings.Repeat("row\n", 500)} {
		if got := Generate(text, text); got != "" {
			t.Fatalf("Generate(x, x) = %q, want empty", got)
		}
	}
}

func TestGenerateDetectsEveryDifference(t *testing.T) {
	tests := []struct {
		name     string
		previous string
		current  string
	}{
		{name: "changed line", previous: "a\nb\nc\n", current: "a\nB\nc\n"},
		{name: "trailing newline only", previous: "a", current: "a\n"},
		{name: "from empty", previous: "", current: "new"},
		{name: "to empty", previous: "old", current: ""},
		{name: "whitespace", previous: "x y", current: "x  y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Generate(tt.previous, tt.current) == "" {
				t.Fatal("expected non-empty diff")
			}
		})
	}
}

func TestGenerateUnifiedFormat(t *testing.T) {
	previous := "# Spec\n\nRetries: none\nTimeout: 30s\n"
	current := "# Spec\n\nRetries: 3 with backoff\nTimeout: 30s\n"

	got := Generate(previous, current)

	for _, want := range []string{"--- previous", "+++ current", "@@", "-Retries: none", "+Retries: 3 with backoff", " Timeout: 30s"} {
		if !strings.Contains(got, want) {
			t.Fatalf("diff missing %q:\n%s", want, got)
		}
	}
}
