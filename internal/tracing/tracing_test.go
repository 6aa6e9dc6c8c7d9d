package tracing

import (
	"context"
	"testing"

	"slotbook/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupDisabledInstallsPropagator(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{}, config.AppConfig{Name: "slotbook"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestNewProviderRecordsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := newProvider(context.Background(), exp,
		config.TracingConfig{SampleRatio: 1},
		config.AppConfig{Name: "slotbook", Version: "test", Environment: "dev"},
	)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "book")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "book", spans[0].Name)

	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "slotbook", service)
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewProviderSamplesNothingAtZeroRatio(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := newProvider(context.Background(), exp, config.TracingConfig{ServiceName: "svc"}, config.AppConfig{})
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))
	assert.Empty(t, exp.GetSpans())
}
