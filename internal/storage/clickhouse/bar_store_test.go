package clickhouse

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbrain/internal/domain"
	"quantbrain/internal/storage"
)

func TestBarStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	bars := []*domain.Bar{
		{SeriesID: "BTC-1d", TimestampMs: 1704153600000, Price: 45000.5, Signal: 1, SignalIntegral: true},
		{SeriesID: "BTC-1d", TimestampMs: 1704067200000, Price: 44000, Signal: 0, SignalIntegral: true},
		{SeriesID: "ETH-1d", TimestampMs: 1704067200000, Price: 2300, Signal: -0.7},
	}
	require.NoError(t, store.InsertBulk(ctx, bars))

	got, err := store.GetBySeries(ctx, "BTC-1d")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1704067200000), got[0].TimestampMs)
	assert.Equal(t, 45000.5, got[1].Price)
	assert.True(t, got[1].SignalIntegral)

	eth, err := store.GetBySeries(ctx, "ETH-1d")
	require.NoError(t, err)
	require.Len(t, eth, 1)
	assert.False(t, eth[0].SignalIntegral)
	assert.Equal(t, -0.7, eth[0].Signal)
}

func TestBarStore_NaNSignalRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Bar{
		{SeriesID: "nan", TimestampMs: 1, Price: 10, Signal: math.NaN()},
	}))

	got, err := store.GetBySeries(ctx, "nan")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, math.IsNaN(got[0].Signal))
}

func TestBarStore_Duplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.Bar{
		{SeriesID: "s1", TimestampMs: 1000, Price: 1},
		{SeriesID: "s1", TimestampMs: 3000, Price: 3},
	}))

	// clash with stored row
	err := store.InsertBulk(ctx, []*domain.Bar{
		{SeriesID: "s1", TimestampMs: 2000, Price: 2},
		{SeriesID: "s1", TimestampMs: 3000, Price: 3},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// intra-batch
	err = store.InsertBulk(ctx, []*domain.Bar{
		{SeriesID: "s2", TimestampMs: 1000, Price: 1},
		{SeriesID: "s2", TimestampMs: 1000, Price: 2},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetBySeries(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got, 2, "failed batch must not insert")
}

func TestBarStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	var bars []*domain.Bar
	for i := int64(1); i <= 6; i++ {
		bars = append(bars, &domain.Bar{SeriesID: "s1", TimestampMs: i * 1000, Price: float64(i)})
	}
	require.NoError(t, store.InsertBulk(ctx, bars))

	got, err := store.GetByTimeRange(ctx, "s1", 2000, 4000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(2000), got[0].TimestampMs)
	assert.Equal(t, int64(4000), got[2].TimestampMs)
}
