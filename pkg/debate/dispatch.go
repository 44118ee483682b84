package debate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"specdebate/pkg/bus"
	providertypes "specdebate/pkg/provider/types"
)

// ErrNoModels is returned when a dispatch is asked to call zero models.
var ErrNoModels = errors.New("no models specified")

// Dispatcher runs one Caller invocation per model concurrently.
type Dispatcher struct {
	caller   *Caller
	events   *bus.EventBus
	logger   *slog.Logger
	newRunID func() string
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithEventBus publishes call lifecycle events on b.
func WithEventBus(b *bus.EventBus) Option {
	return func(d *Dispatcher) {
		d.events = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDispatcher(caller *Caller, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		caller:   caller,
		logger:   slog.Default(),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "debate.dispatcher")
	return d
}

// Run calls every model concurrently and returns results in input order.
// Individual failures are reported inside the results; the only error is
// ErrNoModels.
func (d *Dispatcher) Run(ctx context.Context, models []string, params Params) ([]ModelResult, error) {
	if len(models) == 0 {
		return nil, ErrNoModels
	}

	runID := d.newRunID()
	logger := d.logger.With("run_id", runID)
	logger.Info("dispatch started", "models", len(models), "round", params.Round)

	start := time.Now()
	results := make([]ModelResult, len(models))

	var g errgroup.Group
	for i, model := range models {
		g.Go(func() error {
			callStart := time.Now()
			d.publish(ctx, bus.Event{Type: bus.EventCallStarted, RunID: runID, Model: model, Index: i, Total: len(models)})

			defer func() {
				if recovered := recover(); recovered != nil {
					err := providertypes.NewError(providertypes.KindInternal, fmt.Sprintf("panic: %v", recovered))
					logger.Error("model call panicked", "model", model, "error", err)
					results[i] = failedResult(model, err, time.Since(callStart))
				}
				d.publishResult(ctx, runID, i, len(models), results[i])
			}()

			results[i] = d.caller.Call(ctx, params.request(model))
			// Never fail the group: a failed model must not affect its siblings.
			return nil
		})
	}
	_ = g.Wait()

	succeeded, failed := Partition(results)
	logger.Info("dispatch finished",
		"succeeded", len(succeeded),
		"failed", len(failed),
		"all_agreed", AllAgreed(results),
		"duration", time.Since(start),
	)

	return results, nil
}

func (d *Dispatcher) publish(ctx context.Context, event bus.Event) {
	if d.events == nil {
		return
	}
	d.events.PublishEvent(ctx, event)
}

func (d *Dispatcher) publishResult(ctx context.Context, runID string, index int, total int, result ModelResult) {
	event := bus.Event{
		Type:  bus.EventCallCompleted,
		RunID: runID,
		Model: result.Model,
		Index: index,
		Total: total,
		Payload: map[string]string{
			"duration_ms": strconv.FormatInt(result.DurationMS, 10),
		},
	}

	if result.Failed() {
		event.Type = bus.EventCallFailed
		event.Error = result.Error
		event.Payload["error_kind"] = string(result.ErrorKind)
	} else {
		event.Payload["agreed"] = strconv.FormatBool(result.Agreed)
		event.Payload["input_tokens"] = strconv.FormatInt(result.InputTokens, 10)
		event.Payload["output_tokens"] = strconv.FormatInt(result.OutputTokens, 10)
		event.Payload["cost"] = strconv.FormatFloat(result.Cost, 'f', 6, 64)
	}

	d.publish(ctx, event)
}

// LogEvents writes every bus event to logger until events is closed.
func LogEvents(events <-chan bus.Event, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "debate.events")

	for event := range events {
		attrs := []any{"run_id", event.RunID, "model", event.Model, "index", event.Index}
		for key, value := range event.Payload {
			attrs = append(attrs, key, value)
		}

		switch event.Type {
		case bus.EventCallFailed:
			logger.Warn("model call failed", append(attrs, "error", event.Error)...)
		case bus.EventCallCompleted:
			logger.Info("model call completed", attrs...)
		default:
			logger.Debug("model call started", attrs...)
		}
	}
}
