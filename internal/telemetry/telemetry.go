// Package telemetry exposes the service's OpenTelemetry counters.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "worklog"

// Metrics groups the counters recorded by lifecycle and notification code.
// A nil *Metrics records nothing.
type Metrics struct {
	tasksCreated   metric.Int64Counter
	tasksApproved  metric.Int64Counter
	tasksDeleted   metric.Int64Counter
	notifyFailures metric.Int64Counter
}

// New creates the counters on the global meter provider.
func New() (*Metrics, error) {
	return NewWithMeter(otel.Meter(instrumentationName))
}

// NewWithMeter creates the counters on meter.
func NewWithMeter(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.tasksCreated, err = meter.Int64Counter("worklog.tasks.created",
		metric.WithDescription("Tasks submitted"), metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("tasks.created counter: %w", err)
	}
	if m.tasksApproved, err = meter.Int64Counter("worklog.tasks.approved",
		metric.WithDescription("Approval signatures recorded"), metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("tasks.approved counter: %w", err)
	}
	if m.tasksDeleted, err = meter.Int64Counter("worklog.tasks.deleted",
		metric.WithDescription("Tasks deleted by their owner"), metric.WithUnit("{task}")); err != nil {
		return nil, fmt.Errorf("tasks.deleted counter: %w", err)
	}
	if m.notifyFailures, err = meter.Int64Counter("worklog.notifications.failed",
		metric.WithDescription("Notifications that could not be delivered"), metric.WithUnit("{notification}")); err != nil {
		return nil, fmt.Errorf("notifications.failed counter: %w", err)
	}
	return &m, nil
}

// TaskCreated records a submission; continued is true when it links a parent.
func (m *Metrics) TaskCreated(ctx context.Context, continued bool) {
	if m == nil {
		return
	}
	m.tasksCreated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("continuation", continued)))
}

// TaskApproved records an approval signature.
func (m *Metrics) TaskApproved(ctx context.Context) {
	if m == nil {
		return
	}
	m.tasksApproved.Add(ctx, 1)
}

// TaskDeleted records an owner deletion.
func (m *Metrics) TaskDeleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.tasksDeleted.Add(ctx, 1)
}

// NotificationFailed records an absorbed notification error of the given kind.
func (m *Metrics) NotificationFailed(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.notifyFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// InstallStdout registers a global meter provider that periodically writes
// metrics to stdout. The returned function flushes and stops it.
func InstallStdout(interval time.Duration) (func(context.Context) error, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("stdout metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}
