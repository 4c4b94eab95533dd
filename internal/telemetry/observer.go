package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/silbaram/elasticsearch-mcp-server/internal/usecase"
)

// Metric instrument names.
const (
	MetricInvocations = "esmcp.tool.invocations"
	MetricFailures    = "esmcp.tool.failures"
	MetricDuration    = "esmcp.tool.duration"
)

// DispatchMetrics records every finished dispatch into OpenTelemetry instruments
// and logs it at debug level.
type DispatchMetrics struct {
	invocations metric.Int64Counter
	failures    metric.Int64Counter
	duration    metric.Float64Histogram
	logger      *slog.Logger
}

var _ usecase.DispatchObserver = (*DispatchMetrics)(nil)

// NewDispatchMetrics creates the instruments on meter.
func NewDispatchMetrics(meter metric.Meter, logger *slog.Logger) (*DispatchMetrics, error) {
	invocations, err := meter.Int64Counter(
		MetricInvocations,
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		MetricFailures,
		metric.WithDescription("Number of tool invocations that were rejected or failed"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		MetricDuration,
		metric.WithDescription("Tool invocation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &DispatchMetrics{
		invocations: invocations,
		failures:    failures,
		duration:    duration,
		logger:      logger.With("component", "dispatch_metrics"),
	}, nil
}

// ObserveDispatch implements usecase.DispatchObserver.
func (m *DispatchMetrics) ObserveDispatch(ctx context.Context, obs usecase.DispatchObservation) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("tool", obs.Tool),
		attribute.String("state", string(obs.State)),
		attribute.String("engine_version", obs.EngineVersion),
	}
	if obs.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", string(obs.ErrorKind)))
	}
	// Detach from cancellation so a timed-out request is still counted.
	ctx = context.WithoutCancel(ctx)
	options := metric.WithAttributes(attrs...)
	m.invocations.Add(ctx, 1, options)
	if obs.State != usecase.StateCompleted {
		m.failures.Add(ctx, 1, options)
	}
	m.duration.Record(ctx, obs.Duration.Seconds(), options)

	m.logger.Debug("Dispatch observed",
		slog.String("tool", obs.Tool),
		slog.String("state", string(obs.State)),
		slog.Duration("duration", obs.Duration),
	)
}
