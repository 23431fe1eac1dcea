package cmd

import (
	"context"

	"github.com/dukex/flowroute/pkg/otelhelper"
	"go.opentelemetry.io/otel/trace"
)

// NewTracer returns an OTLP tracer when enabled and a no-op tracer otherwise. The
// returned shutdown function is always safe to call.
//
// nolint:ireturn
func NewTracer(ctx context.Context, enabled bool, serviceName string) (trace.Tracer, func(context.Context) error, error) {
	if !enabled {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	return otelhelper.NewTracer(ctx, serviceName)
}
