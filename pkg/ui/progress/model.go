// Package progress shows one live row per model while a critique round runs.
package progress

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"specdebate/pkg/bus"
)

type rowState int

const (
	statePending rowState = iota
	stateRunning
	stateAgreed
	stateCritiqued
	stateFailed
)

type row struct {
	model    string
	state    rowState
	started  time.Time
	duration time.Duration
	tokens   string
	detail   string
}

func (r row) terminal() bool {
	return r.state >= stateAgreed
}

type eventMsg struct {
	event bus.Event
}

type closedMsg struct{}

type model struct {
	events  <-chan bus.Event
	rows    []row
	spinner spinner.Model
	theme   theme
	title   string
	now     func() time.Time
	done    bool
}

func newModel(events <-chan bus.Event, models []string, title string) *model {
	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	rows := make([]row, len(models))
	for i, name := range models {
		rows[i] = row{model: name}
	}

	return &model{
		events:  events,
		rows:    rows,
		spinner: spin,
		theme:   defaultTheme(),
		title:   title,
		now:     time.Now,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case eventMsg:
		m.apply(typed.event)
		if m.finished() {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)
	case closedMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *model) apply(event bus.Event) {
	if event.Index < 0 || event.Index >= len(m.rows) {
		return
	}

	current := &m.rows[event.Index]
	if event.Model != "" {
		current.model = event.Model
	}

	switch event.Type {
	case bus.EventCallStarted:
		current.state = stateRunning
		current.started = event.At
	case bus.EventCallCompleted:
		current.state = stateCritiqued
		if event.Payload["agreed"] == "true" {
			current.state = stateAgreed
		}
		current.duration = payloadDuration(event.Payload)
		current.tokens = fmt.Sprintf("%s in / %s out", event.Payload["input_tokens"], event.Payload["output_tokens"])
	case bus.EventCallFailed:
		current.state = stateFailed
		current.duration = payloadDuration(event.Payload)
		current.detail = event.Error
	}
}

func (m *model) finished() bool {
	for _, r := range m.rows {
		if !r.terminal() {
			return false
		}
	}
	return true
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(m.theme.header.Render(m.title))
	b.WriteString("\n")

	width := 0
	for _, r := range m.rows {
		width = max(width, len(r.model))
	}

	for _, r := range m.rows {
		name := m.theme.model.Render(fmt.Sprintf("%-*s", width, r.model))
		b.WriteString("  ")
		b.WriteString(name)
		b.WriteString("  ")
		b.WriteString(m.status(r))
		b.WriteString("\n")
	}

	return b.String()
}

func (m *model) status(r row) string {
	switch r.state {
	case stateRunning:
		elapsed := ""
		if !r.started.IsZero() {
			elapsed = " " + m.now().Sub(r.started).Round(time.Second).String()
		}
		return m.theme.running.Render(m.spinner.View() + " waiting" + elapsed)
	case stateAgreed:
		return m.theme.agreed.Render("✓ agreed") + " " + m.theme.meta.Render(m.meta(r))
	case stateCritiqued:
		return m.theme.critiqued.Render("✎ critiqued") + " " + m.theme.meta.Render(m.meta(r))
	case stateFailed:
		return m.theme.failed.Render("✗ " + r.detail)
	default:
		return m.theme.pending.Render("· queued")
	}
}

func (m *model) meta(r row) string {
	return fmt.Sprintf("(%s, %s)", r.duration.Round(100*time.Millisecond), r.tokens)
}

func payloadDuration(payload map[string]string) time.Duration {
	ms, err := strconv.ParseInt(payload["duration_ms"], 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

// waitForEvent blocks until the next bus event or the channel closes.
func waitForEvent(events <-chan bus.Event) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return closedMsg{}
		}
		event, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg{event: event}
	}
}
