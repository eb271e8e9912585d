package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracerAndMeterAreUsableBeforeInit(t *testing.T) {
	tracer := Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	defer span.End()

	meter := Meter("test")
	counter, err := meter.Int64Counter("test_counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}

func TestInitInstallsProvidersAndShutdownCleansUp(t *testing.T) {
	err := Init(context.Background(), "codeprysm-test")
	require.NoError(t, err)

	tracer := Tracer("test")
	_, span := tracer.Start(context.Background(), "op")
	span.End()

	require.NoError(t, Shutdown(context.Background()))
}
