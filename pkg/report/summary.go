package report

import (
	"fmt"
	"strings"

	"specdebate/pkg/prompts"
)

// Summary is the short round digest sent to notification channels.
func Summary(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Spec debate round %d (%s)\n", doc.Round, prompts.DocTypeName(doc.DocType))

	if doc.AllAgreed {
		b.WriteString("All models agree.\n")
	}

	agreed, critiqued := splitByAgreement(doc.Results)
	if len(agreed) > 0 && !doc.AllAgreed {
		fmt.Fprintf(&b, "Agreed: %s\n", strings.Join(agreed, ", "))
	}
	if len(critiqued) > 0 {
		fmt.Fprintf(&b, "Critiqued: %s\n", strings.Join(critiqued, ", "))
	}

	for _, result := range doc.Results {
		if result.Failed() {
			fmt.Fprintf(&b, "Failed: %s (%s)\n", result.Model, result.ErrorKind)
		}
	}

	for _, result := range doc.Results {
		if result.Failed() || result.Agreed {
			continue
		}
		fmt.Fprintf(&b, "\n[%s]\n%s\n", result.Model, firstLines(result.Response, 6))
	}

	fmt.Fprintf(&b, "\nCost: $%.4f (%d in / %d out tokens)", doc.Cost.Total, doc.Cost.InputTokens, doc.Cost.OutputTokens)
	return b.String()
}

func firstLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:n], "\n") + "\n…"
}
