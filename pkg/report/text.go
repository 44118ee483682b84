package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"specdebate/pkg/debate"
	"specdebate/pkg/prompts"
)

// theme groups the styles used by the text report.
type theme struct {
	heading   lipgloss.Style
	model     lipgloss.Style
	agreed    lipgloss.Style
	failed    lipgloss.Style
	consensus lipgloss.Style
}

func styledTheme() theme {
	return theme{
		heading: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("223")),
		model: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("44")),
		agreed: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("114")),
		failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
		consensus: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("28")).
			Padding(0, 1),
	}
}

// TextOptions controls the human-readable report.
type TextOptions struct {
	// Styled enables terminal colors. Keep it off when output is not a TTY.
	Styled bool
}

// WriteText renders the round the way a reviewer reads it in a terminal.
func WriteText(w io.Writer, doc Document, opts TextOptions) error {
	th := styledTheme()
	render := func(style lipgloss.Style, text string) string {
		if !opts.Styled {
			return text
		}
		return style.Render(text)
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(render(th.heading, fmt.Sprintf("=== Round %d Results (%s) ===", doc.Round, prompts.DocTypeName(doc.DocType))))
	b.WriteString("\n\n")

	for _, result := range doc.Results {
		b.WriteString(render(th.model, fmt.Sprintf("--- %s ---", result.Model)))
		b.WriteString("\n")
		switch {
		case result.Failed():
			b.WriteString(render(th.failed, "ERROR: "+result.Error))
		case result.Agreed:
			b.WriteString(render(th.agreed, "[AGREE]"))
		default:
			b.WriteString(result.Response)
		}
		b.WriteString("\n\n")
	}

	if doc.AllAgreed {
		b.WriteString(render(th.consensus, "=== ALL MODELS AGREE ==="))
		b.WriteString("\n")
	} else {
		agreed, critiqued := splitByAgreement(doc.Results)
		if len(agreed) > 0 {
			fmt.Fprintf(&b, "Agreed: %s\n", strings.Join(agreed, ", "))
		}
		if len(critiqued) > 0 {
			fmt.Fprintf(&b, "Critiqued: %s\n", strings.Join(critiqued, ", "))
		}
	}

	if summary := doc.Cost.Format(); summary != "" {
		b.WriteString("\n")
		b.WriteString(summary)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func splitByAgreement(results []debate.ModelResult) (agreed []string, critiqued []string) {
	for _, result := range results {
		if result.Failed() {
			continue
		}
		if result.Agreed {
			agreed = append(agreed, result.Model)
		} else {
			critiqued = append(critiqued, result.Model)
		}
	}
	return agreed, critiqued
}
