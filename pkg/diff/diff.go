// Package diff renders line-level differences between two document revisions.
package diff

import (
	"github.com/pmezard/go-difflib/difflib"
)

const contextLines = 3

// Generate returns a unified diff from previous to current, or "" when the
// texts are identical.
func Generate(previous, current string) string {
	if previous == current {
		return ""
	}

	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(previous),
		B:        difflib.SplitLines(current),
		FromFile: "previous",
		ToFile:   "current",
		Context:  contextLines,
	})
	if err != nil {
		// Writes go to an in-memory buffer, so this only guards future changes.
		return ""
	}

	return out
}
