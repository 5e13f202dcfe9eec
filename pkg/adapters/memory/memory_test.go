package memory_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/productbaker/pkg/adapters/memory"
	"github.com/aretw0/productbaker/pkg/core"
)

func rec(key, data string) core.Record {
	return core.Record{Key: key, Data: json.RawMessage(data), Timestamp: 1}
}

func TestBackend_ClosedRejectsOperations(t *testing.T) {
	b := memory.New()
	ctx := context.Background()

	assert.ErrorIs(t, b.Put(ctx, rec("k", `1`)), core.ErrClosed)
	_, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, core.ErrClosed)

	require.NoError(t, b.Open(ctx))
	require.NoError(t, b.Put(ctx, rec("k", `1`)))
	require.NoError(t, b.Close())

	require.NoError(t, b.Open(ctx))
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(got.Data), "records survive a close")
}

func TestBackend_CRUD(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	require.NoError(t, b.Open(ctx))

	_, err := b.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, b.Put(ctx, rec("a", `"x"`)))
	require.NoError(t, b.Put(ctx, rec("b", `"y"`)))
	require.NoError(t, b.Delete(ctx, "a"))
	require.NoError(t, b.Delete(ctx, "a"))

	all, err := b.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].Key)

	require.NoError(t, b.Clear(ctx))
	all, err = b.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBackend_PutCopiesData(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	require.NoError(t, b.Open(ctx))

	data := []byte(`"abc"`)
	require.NoError(t, b.Put(ctx, core.Record{Key: "k", Data: data}))
	data[1] = 'z'

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(got.Data))
}

func TestBackend_Quota(t *testing.T) {
	small := rec("k", `"v"`)
	b := memory.New(memory.WithQuota(int64(small.Size()) + 5))
	ctx := context.Background()
	require.NoError(t, b.Open(ctx))

	require.NoError(t, b.Put(ctx, small))
	// replacing a record only counts the difference
	require.NoError(t, b.Put(ctx, small))

	err := b.Put(ctx, rec("other", `"a much longer value"`))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrQuotaExceeded)

	err = b.PutBatch(ctx, []core.Record{rec("x", `1`), rec("y", `2`)})
	assert.ErrorIs(t, err, core.ErrQuotaExceeded)
	_, err = b.Get(ctx, "x")
	assert.ErrorIs(t, err, core.ErrNotFound, "failed batch writes nothing")

	est, err := b.Estimate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(small.Size()), est.Usage)
	assert.Equal(t, int64(small.Size())+5, est.Quota)
}
