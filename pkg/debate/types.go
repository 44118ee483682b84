// Package debate fans a critique request out to several models and collects
// one normalized result per model.
package debate

import (
	"time"

	providertypes "specdebate/pkg/provider/types"
)

// DefaultTimeout bounds a single model call when the request leaves it unset.
const DefaultTimeout = 600 * time.Second

// CallRequest is everything one model call needs. It is passed by value.
type CallRequest struct {
	Model          string
	Spec           string
	Round          int
	DocType        string
	Press          bool
	Focus          string
	Persona        string
	Context        string
	PreserveIntent bool
	Timeout        time.Duration
}

// Params are the request fields shared by every model of one dispatch.
type Params struct {
	Spec           string
	Round          int
	DocType        string
	Press          bool
	Focus          string
	Persona        string
	Context        string
	PreserveIntent bool
	Timeout        time.Duration
}

func (p Params) request(model string) CallRequest {
	return CallRequest{
		Model:          model,
		Spec:           p.Spec,
		Round:          p.Round,
		DocType:        p.DocType,
		Press:          p.Press,
		Focus:          p.Focus,
		Persona:        p.Persona,
		Context:        p.Context,
		PreserveIntent: p.PreserveIntent,
		Timeout:        p.Timeout,
	}
}

// ModelResult is the outcome of one model call. It is not modified after
// the caller returns it.
type ModelResult struct {
	Model        string             `json:"model"`
	Agreed       bool               `json:"agreed"`
	Response     string             `json:"response"`
	Spec         string             `json:"spec,omitempty"`
	Error        string             `json:"error,omitempty"`
	ErrorKind    providertypes.Kind `json:"error_kind,omitempty"`
	InputTokens  int64              `json:"input_tokens"`
	OutputTokens int64              `json:"output_tokens"`
	Cost         float64            `json:"cost"`
	DurationMS   int64              `json:"duration_ms"`
}

// Failed reports whether the call ended in an error.
func (r ModelResult) Failed() bool {
	return r.Error != ""
}

func failedResult(model string, err error, elapsed time.Duration) ModelResult {
	return ModelResult{
		Model:      model,
		Error:      err.Error(),
		ErrorKind:  providertypes.KindOf(err),
		DurationMS: elapsed.Milliseconds(),
	}
}

// AllAgreed is true when at least one model succeeded and every successful
// model agreed. Failed models are ignored.
func AllAgreed(results []ModelResult) bool {
	succeeded := 0
	for _, result := range results {
		if result.Failed() {
			continue
		}
		succeeded++
		if !result.Agreed {
			return false
		}
	}
	return succeeded > 0
}

// Partition splits results into successful and failed models, keeping order.
func Partition(results []ModelResult) (succeeded []ModelResult, failed []ModelResult) {
	for _, result := range results {
		if result.Failed() {
			failed = append(failed, result)
			continue
		}
		succeeded = append(succeeded, result)
	}
	return succeeded, failed
}
