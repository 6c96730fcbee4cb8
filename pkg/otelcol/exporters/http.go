package exporters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"

	"paz-rewards/pkg/config"
)

func ProvideHTTP(cfg *config.Config) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if cfg.Otel.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Otel.Endpoint))
	}

	return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
}
