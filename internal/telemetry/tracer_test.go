package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracer_WithoutExporter(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Options{ServiceName: "janus-rag-test", Environment: "test", SampleRatio: 1})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	require.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(context.Background()))
}
