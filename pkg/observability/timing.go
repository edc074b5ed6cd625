package observability

import (
	"log/slog"
	"time"
)

// Timer measures one operation and reports it on Stop.
type Timer struct {
	operation  string
	start      time.Time
	logger     *slog.Logger
	metrics    Metrics
	metricName string
	tags       []Tag
}

// StartTimer creates a new timer for the given operation.
func StartTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

// WithLogger logs the duration at debug level on stop.
func (t *Timer) WithLogger(logger *slog.Logger) *Timer {
	t.logger = logger
	return t
}

// WithMetrics records the duration under name on stop.
func (t *Timer) WithMetrics(metrics Metrics, name string, tags ...Tag) *Timer {
	t.metrics = metrics
	t.metricName = name
	t.tags = append(t.tags, tags...)
	return t
}

// Stop records the elapsed duration. Extra tags are appended to the metric labels.
func (t *Timer) Stop(extra ...Tag) time.Duration {
	duration := time.Since(t.start)

	if t.logger != nil {
		t.logger.Debug("operation completed",
			"operation", t.operation,
			DurationKey, duration.Milliseconds(),
		)
	}
	if t.metrics != nil {
		tags := append(append([]Tag{}, t.tags...), extra...)
		t.metrics.Timing(t.metricName, duration, tags...)
	}
	return duration
}
