package http

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/freekieb7/mudpie/http"

type instruments struct {
	tracer trace.Tracer

	requests       metric.Int64Counter
	duration       metric.Float64Histogram
	activeConns    metric.Int64UpDownCounter
	handlerPanics  metric.Int64Counter
	workerRestarts metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider, tp trace.TracerProvider) (*instruments, error) {
	meter := mp.Meter(instrumentationName)
	inst := &instruments{tracer: tp.Tracer(instrumentationName)}

	var err, errs error
	inst.requests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Responses written, by method and status code"),
		metric.WithUnit("{request}"))
	errs = errors.Join(errs, err)

	inst.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Time from accept to the last response byte"),
		metric.WithUnit("s"))
	errs = errors.Join(errs, err)

	inst.activeConns, err = meter.Int64UpDownCounter("http.server.active_connections",
		metric.WithDescription("Connections currently owned by a worker"),
		metric.WithUnit("{connection}"))
	errs = errors.Join(errs, err)

	inst.handlerPanics, err = meter.Int64Counter("http.server.handler.panics",
		metric.WithDescription("Handlers that ended without returning a response"),
		metric.WithUnit("{panic}"))
	errs = errors.Join(errs, err)

	inst.workerRestarts, err = meter.Int64Counter("http.server.worker.restarts",
		metric.WithDescription("Workers replaced by the supervisor"),
		metric.WithUnit("{worker}"))
	errs = errors.Join(errs, err)

	return inst, errs
}

func (inst *instruments) recordResponse(ctx context.Context, method string, code int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.Int("http.response.status_code", code),
	)
	inst.requests.Add(ctx, 1, attrs)
	inst.duration.Record(ctx, elapsed.Seconds(), attrs)
}
