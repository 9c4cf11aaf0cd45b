package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "commitcoord", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOpBeforeInit(t *testing.T) {
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpanWithoutInit(t *testing.T) {
	ctx := context.Background()
	newCtx, span := StartSpan(ctx, "coordinator.commit")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestRecordErrorNilIsNoop(t *testing.T) {
	ctx := context.Background()
	require.NotPanics(t, func() { RecordError(ctx, nil) })
	require.NotPanics(t, func() { RecordError(ctx, errors.New("boom")) })
}

func TestBuildSamplerBoundaries(t *testing.T) {
	assert.NotNil(t, buildSampler(0))
	assert.NotNil(t, buildSampler(1))
	assert.NotNil(t, buildSampler(0.5))
}
