package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"chat-service/config"
)

func TestInitTelemetryWithoutExporter(t *testing.T) {
	cfg := config.Settings{Service: config.ServiceSettings{Name: "chat-service-test"}}

	shutdown, err := InitTelemetry(context.Background(), cfg)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}
