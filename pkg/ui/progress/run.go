package progress

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"specdebate/pkg/bus"
)

// Run renders live progress to out until every model finishes, events
// closes or ctx is cancelled. Keyboard input is not read.
func Run(ctx context.Context, events <-chan bus.Event, models []string, out io.Writer) error {
	title := fmt.Sprintf("Calling %d model(s)", len(models))
	program := tea.NewProgram(
		newModel(events, models, title),
		tea.WithContext(ctx),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	_, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("progress view: %w", err)
	}
	return nil
}
