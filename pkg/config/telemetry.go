package config

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/version"
)

type Telemetry struct {
	meterProvider *sdkmetric.MeterProvider
}

func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.meterProvider.Shutdown(ctx); err != nil {
		log.Warn("could not shutdown meter provider", log.ErrorField(err))
	}
}

// SetupTelemetry initializes the global meter provider. Metrics are
// exported via OTLP/gRPC to TelemetryEndpoint; with an empty endpoint
// they go to stdout.
func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("f1log-recorder"),
			semconv.ServiceVersion(version.Version),
		))
	if err != nil {
		return nil, err
	}

	var exporter sdkmetric.Exporter
	if TelemetryEndpoint != "" {
		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
			otlpmetricgrpc.WithInsecure())
	} else {
		exporter, err = stdoutmetric.New()
	}
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(mp)
	return &Telemetry{meterProvider: mp}, nil
}
