package codeerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWrapsAndUnwraps(t *testing.T) {
	underlying := errors.New("partition xyz missing")
	ce := New(KindPartitionNotFound, "lazygraph.LoadPartition", underlying)

	require.Equal(t, KindPartitionNotFound, ce.Kind)
	require.ErrorIs(t, ce, underlying)
	require.Contains(t, ce.Error(), "lazygraph.LoadPartition")
	require.Contains(t, ce.Error(), string(KindPartitionNotFound))
}

func TestRecommendationPerKind(t *testing.T) {
	for _, k := range []Kind{
		KindSchemaVersionMismatch, KindPartitionNotFound, KindNodeNotFound,
		KindDimensionMismatch, KindProviderAuth, KindProviderRateLimit,
		KindProviderTimeout, KindProviderUnavailable, KindProviderInvalidModel,
		KindIO, KindJSON, KindStorage,
	} {
		ce := New(k, "op", nil)
		require.NotEmpty(t, ce.Recommendation(), "missing recommendation for %s", k)
	}
}

func TestIsChecksKind(t *testing.T) {
	err := New(KindNodeNotFound, "lazygraph.GetNode", ErrNodeNotFound)

	require.True(t, Is(err, KindNodeNotFound))
	require.False(t, Is(err, KindPartitionNotFound))
	require.False(t, Is(errors.New("plain"), KindNodeNotFound))
}

func TestErrorWithNilErr(t *testing.T) {
	ce := New(KindStorage, "partition.Open", nil)
	require.Equal(t, "partition.Open: storage", ce.Error())
	require.NoError(t, ce.Unwrap())
}
