package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/annel0/block-physics/internal/config"
)

func TestTracerProviderRecordsSpansWithServiceName(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProvider(context.Background(),
		config.TelemetryConfig{ServiceName: "collapse-test", SampleRatio: 1},
		sdktrace.WithSyncer(exp))
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "reload")
	span.SetAttributes(attribute.Int("entries", 3))
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "reload", spans[0].Name)

	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == semconv.ServiceNameKey {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "collapse-test", service)
}

func TestTracerProviderZeroRatioDropsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProvider(context.Background(),
		config.TelemetryConfig{ServiceName: "collapse-test", SampleRatio: 0},
		sdktrace.WithSyncer(exp))
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "reload")
	span.End()

	assert.Empty(t, exp.GetSpans())
}
