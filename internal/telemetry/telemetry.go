// Пакет telemetry — настройка трассировки OpenTelemetry.
// Трассировка опциональна: без ED_OTEL_ENDPOINT глобальный провайдер не регистрируется,
// а otel.Tracer возвращает no-op трассировщик.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc сбрасывает накопленные span'ы и останавливает экспорт.
type ShutdownFunc func(context.Context) error

// Setup инициализирует TracerProvider с OTLP/HTTP экспортом на endpoint.
// Пустой endpoint — трассировка выключена, возвращается no-op ShutdownFunc.
func Setup(ctx context.Context, endpoint, serviceName, version string, logger *slog.Logger) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }
	if endpoint == "" {
		logger.Info("Трассировка выключена (ED_OTEL_ENDPOINT не задан)")
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, fmt.Errorf("создание OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("создание resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("Трассировка включена", slog.String("endpoint", endpoint))
	return tp.Shutdown, nil
}
