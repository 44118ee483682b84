// Package channel delivers round summaries to external chat services.
package channel

import "context"

// Notifier sends one plain-text message to an external destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, text string) error
}
