// Package metrics records engine activity as Prometheus collectors.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives engine measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// ObserveValidation records one pipeline run of operation and its outcome
	// ("accepted", "rejected" or "error").
	ObserveValidation(operation, outcome string, elapsed time.Duration)
	// CountViolation records one rejected (person, booking) pair.
	CountViolation(kind string)
	// ObserveGridBuild records a grid request. Cache hits report zero elapsed time.
	ObserveGridBuild(cached bool, elapsed time.Duration)
}

// NopRecorder discards every measurement.
type NopRecorder struct{}

func (NopRecorder) ObserveValidation(string, string, time.Duration) {}
func (NopRecorder) CountViolation(string)                           {}
func (NopRecorder) ObserveGridBuild(bool, time.Duration)            {}

// PromRecorder implements Recorder with Prometheus collectors.
type PromRecorder struct {
	validations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	violations  *prometheus.CounterVec
	grids       *prometheus.CounterVec
	gridLatency prometheus.Histogram
	gatherer    prometheus.Gatherer
}

var _ Recorder = (*PromRecorder)(nil)

// NewPromRecorder registers the scheduler collectors on reg. A nil reg gets a
// private registry. Collectors that are already registered are reused.
func NewPromRecorder(reg *prometheus.Registry) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	validations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "validations_total",
		Help:      "Assignment validations by operation and outcome.",
	}, []string{"operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "validation_duration_seconds",
		Help:      "Time spent loading the event snapshot and running the validation pipeline.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "violations_total",
		Help:      "Rejected person assignments by violation kind.",
	}, []string{"kind"})
	grids := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "grid_requests_total",
		Help:      "Schedule grid requests split by cache result.",
	}, []string{"cache"})
	gridLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "grid_build_duration_seconds",
		Help:      "Time spent building schedule grids on cache misses.",
		Buckets:   prometheus.DefBuckets,
	})

	var err error
	if validations, err = register(reg, validations); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	if violations, err = register(reg, violations); err != nil {
		return nil, err
	}
	if grids, err = register(reg, grids); err != nil {
		return nil, err
	}
	if gridLatency, err = register(reg, gridLatency); err != nil {
		return nil, err
	}

	return &PromRecorder{
		validations: validations,
		latency:     latency,
		violations:  violations,
		grids:       grids,
		gridLatency: gridLatency,
		gatherer:    reg,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("metrics: register collector: %w", err)
	}
	return c, nil
}

// ObserveValidation implements Recorder.
func (r *PromRecorder) ObserveValidation(operation, outcome string, elapsed time.Duration) {
	r.validations.WithLabelValues(operation, outcome).Inc()
	r.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// CountViolation implements Recorder.
func (r *PromRecorder) CountViolation(kind string) {
	r.violations.WithLabelValues(kind).Inc()
}

// ObserveGridBuild implements Recorder.
func (r *PromRecorder) ObserveGridBuild(cached bool, elapsed time.Duration) {
	if cached {
		r.grids.WithLabelValues("hit").Inc()
		return
	}
	r.grids.WithLabelValues("miss").Inc()
	r.gridLatency.Observe(elapsed.Seconds())
}

// WriteTextfile writes the current values in the node exporter textfile
// format, replacing path atomically.
func (r *PromRecorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.gatherer); err != nil {
		return fmt.Errorf("metrics: write textfile %s: %w", path, err)
	}
	return nil
}
