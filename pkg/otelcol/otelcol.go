package otelcol

import (
	"context"

	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"paz-rewards/pkg/config"
	"paz-rewards/pkg/otelcol/exporters"
)

var Module = fx.Module("otelcol", fx.Invoke(Setup))

// Setup installs the global tracer provider, exporting spans over OTLP/HTTP.
// When tracing is disabled the no-op global provider stays in place.
func Setup(lc fx.Lifecycle, cfg *config.Config) error {
	if !cfg.Otel.Enable {
		return nil
	}

	exporter, err := exporters.ProvideHTTP(cfg)
	if err != nil {
		return err
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.AppName),
		semconv.ServiceVersion(cfg.AppVersion),
		semconv.DeploymentEnvironment(cfg.AppEnv),
	))
	if err != nil {
		return err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			zap.L().Info("shutting down tracer provider")
			return provider.Shutdown(ctx)
		},
	})

	return nil
}
