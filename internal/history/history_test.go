package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

func TestMemStoreCreateWritesInitialPendingRow(t *testing.T) {
	s := NewMemStore()
	job := order.NewJob("ORDER1", order.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 1, Type: order.TypeMarket}, time.Now())

	require.NoError(t, s.Create(context.Background(), job, "Order accepted"))

	rec, ok, err := s.Get(context.Background(), "ORDER1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, order.StatusPending, rec.Status)
	require.Len(t, rec.StatusHistory, 1)
	assert.Equal(t, "Order accepted", rec.StatusHistory[0].Detail)
}

func TestMemStoreAppendStatusAdvancesStatusAndHistory(t *testing.T) {
	s := NewMemStore()
	job := order.NewJob("ORDER2", order.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 1, Type: order.TypeMarket}, time.Now())
	require.NoError(t, s.Create(context.Background(), job, "Order accepted"))

	require.NoError(t, s.AppendStatus(context.Background(), "ORDER2", order.StatusHistoryEntry{Status: order.StatusQueued, RecordedAt: time.Now()}))
	require.NoError(t, s.AppendStatus(context.Background(), "ORDER2", order.StatusHistoryEntry{Status: order.StatusRouting, RecordedAt: time.Now()}))

	rec, ok, err := s.Get(context.Background(), "ORDER2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, order.StatusRouting, rec.Status)
	assert.Len(t, rec.StatusHistory, 3)
}

func TestMemStoreAppendStatusRejectsUnknownOrder(t *testing.T) {
	s := NewMemStore()
	err := s.AppendStatus(context.Background(), "MISSING", order.StatusHistoryEntry{Status: order.StatusQueued})
	assert.Error(t, err)
}

func TestMemStoreListPaginatesByUpdatedAtDescending(t *testing.T) {
	s := NewMemStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"A", "B", "C"} {
		s.now = func(t time.Time) func() time.Time { return func() time.Time { return t } }(base.Add(time.Duration(i) * time.Minute))
		job := order.NewJob(id, order.Request{TokenIn: "SOL", TokenOut: "USDC", Amount: 1, Type: order.TypeMarket}, base)
		require.NoError(t, s.Create(context.Background(), job, "Order accepted"))
	}

	page, err := s.List(context.Background(), ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "C", page.Data[0].OrderID)
	assert.Equal(t, "B", page.Data[1].OrderID)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextCursor)

	next, err := s.List(context.Background(), ListOptions{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Data, 1)
	assert.Equal(t, "A", next.Data[0].OrderID)
	assert.False(t, next.HasMore)
}

func TestListOptionsClampLimit(t *testing.T) {
	assert.Equal(t, 50, ListOptions{}.ClampLimit())
	assert.Equal(t, 200, ListOptions{Limit: 1000}.ClampLimit())
	assert.Equal(t, 1, ListOptions{Limit: 1}.ClampLimit())
}

func TestAppendCappedDropsOldestPastRetention(t *testing.T) {
	var h []order.StatusHistoryEntry
	for i := 0; i < maxStatusHistoryEntries+10; i++ {
		h = appendCapped(h, order.StatusHistoryEntry{Status: order.StatusSubmitted})
	}
	assert.Len(t, h, maxStatusHistoryEntries)
}
