package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockbus/pubsub-capture/pkg/telemetry"
)

func TestInit_ReturnsWorkingShutdown(t *testing.T) {
	shutdown, err := telemetry.Init(telemetry.Config{
		ServiceName: "mockbusd-test",
		Endpoint:    "localhost:4317",
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// otlptracegrpc.New with WithInsecure dials lazily; Shutdown must not
	// panic even though nothing is listening on the collector endpoint.
	assert.NotPanics(t, func() {
		_ = shutdown(ctx)
	})
}

func TestInit_AcceptsZeroValueConfig(t *testing.T) {
	var cfg telemetry.Config
	assert.Equal(t, "", cfg.ServiceName)

	shutdown, err := telemetry.Init(telemetry.Config{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
