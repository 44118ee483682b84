// Package metrics records per-model call metrics for one critique round and
// writes them in the prometheus text format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"specdebate/pkg/debate"
)

const (
	outcomeAgreed    = "agreed"
	outcomeCritiqued = "critiqued"
)

// Recorder owns a private registry so repeated rounds in tests do not collide.
type Recorder struct {
	registry *prometheus.Registry

	calls     *prometheus.CounterVec
	tokens    *prometheus.CounterVec
	cost      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	allAgreed prometheus.Gauge
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specdebate_model_calls_total",
				Help: "Model calls by outcome (agreed, critiqued or an error kind)",
			},
			[]string{"model", "outcome"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specdebate_tokens_total",
				Help: "Tokens used by successful model calls",
			},
			[]string{"model", "direction"},
		),
		cost: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specdebate_cost_usd_total",
				Help: "Estimated USD cost of successful model calls",
			},
			[]string{"model"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "specdebate_model_call_duration_seconds",
				Help:    "Wall time of each model call",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"model"},
		),
		allAgreed: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "specdebate_round_all_agreed",
				Help: "1 when every successful model agreed in the last round",
			},
		),
	}
}

// ObserveResults records one finished dispatch.
func (r *Recorder) ObserveResults(results []debate.ModelResult) {
	for _, result := range results {
		r.duration.WithLabelValues(result.Model).Observe(float64(result.DurationMS) / 1000)

		if result.Failed() {
			r.calls.WithLabelValues(result.Model, string(result.ErrorKind)).Inc()
			continue
		}

		outcome := outcomeCritiqued
		if result.Agreed {
			outcome = outcomeAgreed
		}
		r.calls.WithLabelValues(result.Model, outcome).Inc()
		r.tokens.WithLabelValues(result.Model, "input").Add(float64(result.InputTokens))
		r.tokens.WithLabelValues(result.Model, "output").Add(float64(result.OutputTokens))
		r.cost.WithLabelValues(result.Model).Add(result.Cost)
	}

	if debate.AllAgreed(results) {
		r.allAgreed.Set(1)
	} else {
		r.allAgreed.Set(0)
	}
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically writes the registry to path, creating parent directories.
func (r *Recorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
