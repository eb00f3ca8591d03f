// Package telemetry configures OpenTelemetry tracing for the process.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/chibuezedev/florin-server/internal/infra/config"
)

// ShutdownFunc flushes and stops tracing.
type ShutdownFunc func(context.Context) error

// Setup installs an OTLP tracer provider when an endpoint is configured.
// Without one, only the propagators are installed and spans are dropped.
func Setup(ctx context.Context, cfg config.TelemetrySettings, env string, logger *zap.Logger) (ShutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		if logger != nil {
			logger.Info("tracing export disabled: no OTLP endpoint configured")
		}
		return func(context.Context) error { return nil }, nil
	}

	tp, err := NewTracerProvider(ctx, cfg, env, logger)
	if err != nil {
		return nil, err
	}
	return tp.Shutdown, nil
}
