package bus

import "time"

type EventType string

const (
	EventCallStarted   EventType = "call_started"
	EventCallCompleted EventType = "call_completed"
	EventCallFailed    EventType = "call_failed"
)

// Event describes one model call transition within a dispatch run.
type Event struct {
	Type    EventType         `json:"type"`
	At      time.Time         `json:"at"`
	RunID   string            `json:"run_id,omitempty"`
	Model   string            `json:"model,omitempty"`
	Index   int               `json:"index"`
	Total   int               `json:"total"`
	Payload map[string]string `json:"payload,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Terminal reports whether the event ends a call.
func (e Event) Terminal() bool {
	return e.Type == EventCallCompleted || e.Type == EventCallFailed
}
