// Package telemetry sets up OpenTelemetry tracing and metrics for the
// relay and the supply pipeline. An exporter that cannot start leaves
// its signal on the global no-op provider; the service keeps running
// and reports the failure through Degraded.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jthomaschappell/echolingo-resurgence/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// DefaultShutdownTimeout bounds Shutdown when ctx has no deadline.
const DefaultShutdownTimeout = 5 * time.Second

// Telemetry holds the process providers.
type Telemetry struct {
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	mu       sync.Mutex
	failures []error
	closers  []func(context.Context) error
}

// New starts the configured exporters and installs the providers
// globally. With cfg.Enabled false nothing is started.
func New(ctx context.Context, cfg config.ObservabilityConfig, version string) *Telemetry {
	t := &Telemetry{}
	if !cfg.Enabled {
		return t
	}
	res := newResource(cfg.ServiceName, version)

	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		t.fail(fmt.Errorf("tracing: %w", err))
	} else {
		t.tracerProvider = tp
		t.closers = append(t.closers, tp.Shutdown)
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		t.fail(fmt.Errorf("metrics: %w", err))
	} else {
		t.meterProvider = mp
		t.closers = append(t.closers, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	// Trace context crosses the NATS hop in event headers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	return t
}

func (t *Telemetry) fail(err error) {
	t.mu.Lock()
	t.failures = append(t.failures, err)
	t.mu.Unlock()
}

// Tracer returns a tracer from this instance, or from the global
// provider when tracing did not start.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t != nil && t.tracerProvider != nil {
		return t.tracerProvider.Tracer(name, opts...)
	}
	return otel.GetTracerProvider().Tracer(name, opts...)
}

// Meter is the metrics counterpart of Tracer.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t != nil && t.meterProvider != nil {
		return t.meterProvider.Meter(name, opts...)
	}
	return otel.GetMeterProvider().Meter(name, opts...)
}

// Degraded reports whether an exporter failed to start, joining the
// causes.
func (t *Telemetry) Degraded() (bool, error) {
	if t == nil {
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failures) > 0, errors.Join(t.failures...)
}

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || len(t.closers) == 0 {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultShutdownTimeout)
		defer cancel()
	}
	var errs []error
	for _, c := range t.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
