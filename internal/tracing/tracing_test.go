package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gfxd/gpu-mode-service/internal/config"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), config.Tracing{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracerWithEndpoint(t *testing.T) {
	// the gRPC client connects lazily, so no collector needs to be listening
	shutdown, err := InitTracer(context.Background(), config.Tracing{Endpoint: "127.0.0.1:4317", Insecure: true})
	require.NoError(t, err)
	assert.NotNil(t, shutdown)
}
