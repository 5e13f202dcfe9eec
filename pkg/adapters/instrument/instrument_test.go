package instrument_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/productbaker/pkg/adapters/instrument"
	"github.com/aretw0/productbaker/pkg/adapters/memory"
	"github.com/aretw0/productbaker/pkg/core"
)

func TestBackendRecordsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := instrument.NewMetrics(reg)
	require.NoError(t, err)

	store := core.NewStore(instrument.Wrap(memory.New(memory.WithQuota(100)), metrics), core.Config{})
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", "v"))
	_, err = store.Load(ctx, "k")
	require.NoError(t, err)
	_, err = store.Load(ctx, "missing")
	require.NoError(t, err)
	err = store.Save(ctx, "big", strings.Repeat("x", 200))
	require.ErrorIs(t, err, core.ErrQuotaExceeded)

	expected := `
# HELP productbaker_store_operations_total Storage backend operations by operation and result.
# TYPE productbaker_store_operations_total counter
productbaker_store_operations_total{op="get",result="ok"} 2
productbaker_store_operations_total{op="open",result="ok"} 1
productbaker_store_operations_total{op="put",result="ok"} 1
productbaker_store_operations_total{op="put",result="quota exceeded"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "productbaker_store_operations_total"))
	assert.Equal(t, 3, testutil.CollectAndCount(metrics.Collectors()[1]), "one histogram per op")
}

func TestBackendForwardsOnlySupportedCapabilities(t *testing.T) {
	metrics, err := instrument.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	wrapped := instrument.Wrap(memory.New(), metrics)

	_, ok := core.Capability[core.Batcher](wrapped)
	assert.True(t, ok, "memory supports batches")
	_, ok = core.Capability[core.Estimator](wrapped)
	assert.True(t, ok)
	_, ok = core.Capability[core.Persister](wrapped)
	assert.False(t, ok, "memory has no persistence")
	_, ok = core.Capability[core.Watchable](wrapped)
	assert.False(t, ok)

	store := core.NewStore(wrapped, core.Config{})
	assert.False(t, store.CheckPersistentStorage(context.Background()).Supported)
}

func TestNewMetricsRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := instrument.NewMetrics(reg)
	require.NoError(t, err)
	_, err = instrument.NewMetrics(reg)
	assert.Error(t, err)
}
