package progress

import "github.com/charmbracelet/lipgloss"

// theme groups reusable styles for progress rows.
type theme struct {
	header    lipgloss.Style
	model     lipgloss.Style
	pending   lipgloss.Style
	running   lipgloss.Style
	agreed    lipgloss.Style
	critiqued lipgloss.Style
	failed    lipgloss.Style
	meta      lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("88")),
		model: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("223")),
		pending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("180")),
		agreed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")).
			Bold(true),
		critiqued: lipgloss.NewStyle().
			Foreground(lipgloss.Color("44")),
		failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")),
		meta: lipgloss.NewStyle().
			Foreground(lipgloss.Color("109")),
	}
}
