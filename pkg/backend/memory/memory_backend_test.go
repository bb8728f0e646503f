package memory

import (
	"testing"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/tradeshield/pkg/core"
)

func newTestOrder(t *testing.T, id uint64, kind core.OrderKind) *core.Order {
	t.Helper()

	orderType := core.TypeStopLoss
	price := &core.OrderPrice{BaseDenom: "btc", QuoteDenom: "usdc", Rate: fpdecimal.FromFloat(30000.0)}
	escrow := core.Coin{Denom: "btc", Amount: fpdecimal.FromFloat(1.0)}

	order, err := core.NewOrder(id, kind, orderType, "alice", price, escrow, "", 1, time.Now())
	require.NoError(t, err)
	return order
}

func TestNextOrderIDIsPerKind(t *testing.T) {
	backend := NewMemoryBackend()

	assert.Equal(t, uint64(1), backend.NextOrderID(core.KindSpot))
	assert.Equal(t, uint64(2), backend.NextOrderID(core.KindSpot))
	assert.Equal(t, uint64(1), backend.NextOrderID(core.KindPerpetual))
	assert.Equal(t, uint64(3), backend.NextOrderID(core.KindSpot))
}

func TestStoreAndGetOrder(t *testing.T) {
	backend := NewMemoryBackend()
	order := newTestOrder(t, 1, core.KindSpot)

	require.NoError(t, backend.StoreOrder(order))
	assert.ErrorIs(t, backend.StoreOrder(order), core.ErrOrderExists)

	got := backend.GetOrder(core.KindSpot, 1)
	require.NotNil(t, got)
	assert.Equal(t, order.ID(), got.ID())

	// Kinds are separate keyspaces
	assert.Nil(t, backend.GetOrder(core.KindPerpetual, 1))

	backend.DeleteOrder(core.KindSpot, 1)
	assert.Nil(t, backend.GetOrder(core.KindSpot, 1))
}

func TestUpdateMissingOrder(t *testing.T) {
	backend := NewMemoryBackend()
	order := newTestOrder(t, 5, core.KindSpot)

	assert.ErrorIs(t, backend.UpdateOrder(order), core.ErrOrderNotFound)
}

func TestBucketStorage(t *testing.T) {
	backend := NewMemoryBackend()
	key := "STOP_LOSS\nbtc\nusdc"

	assert.Empty(t, backend.GetBucket(core.KindSpot, key))

	backend.SaveBucket(core.KindSpot, key, []uint64{3, 1, 2})
	assert.Equal(t, []uint64{3, 1, 2}, backend.GetBucket(core.KindSpot, key))
	assert.Equal(t, []string{key}, backend.BucketKeys(core.KindSpot))
	assert.Empty(t, backend.BucketKeys(core.KindPerpetual))

	// Mutating the returned copy must not leak into storage
	ids := backend.GetBucket(core.KindSpot, key)
	ids[0] = 99
	assert.Equal(t, []uint64{3, 1, 2}, backend.GetBucket(core.KindSpot, key))

	// Saving empty removes the key
	backend.SaveBucket(core.KindSpot, key, nil)
	assert.Empty(t, backend.BucketKeys(core.KindSpot))
}

func TestBucketKeysAreSorted(t *testing.T) {
	backend := NewMemoryBackend()

	backend.SaveBucket(core.KindSpot, "STOP_LOSS\neth\nusdc", []uint64{1})
	backend.SaveBucket(core.KindSpot, "LIMIT_SELL\nbtc\nusdc", []uint64{2})
	backend.SaveBucket(core.KindSpot, "LIMIT_BUY\nbtc\nusdc", []uint64{3})

	want := []string{
		"LIMIT_BUY\nbtc\nusdc",
		"LIMIT_SELL\nbtc\nusdc",
		"STOP_LOSS\neth\nusdc",
	}
	assert.Equal(t, want, backend.BucketKeys(core.KindSpot))
}

func TestOwnerIndexKeepsInsertionOrder(t *testing.T) {
	backend := NewMemoryBackend()

	backend.AppendToOwner(core.KindSpot, "alice", 10)
	backend.AppendToOwner(core.KindSpot, "alice", 4)
	backend.AppendToOwner(core.KindSpot, "alice", 7)
	backend.AppendToOwner(core.KindSpot, "bob", 5)

	assert.Equal(t, []uint64{10, 4, 7}, backend.OwnerOrders(core.KindSpot, "alice"))
	assert.Equal(t, []uint64{5}, backend.OwnerOrders(core.KindSpot, "bob"))

	backend.RemoveFromOwner(core.KindSpot, "alice", 4)
	assert.Equal(t, []uint64{10, 7}, backend.OwnerOrders(core.KindSpot, "alice"))
}

func TestContinuationLifecycle(t *testing.T) {
	backend := NewMemoryBackend()

	token := backend.NextReplyID()
	assert.Equal(t, uint64(1), token)

	cont := &core.Continuation{Kind: core.KindPerpetual, OrderID: 12}
	require.NoError(t, backend.StoreContinuation(token, cont))

	got := backend.GetContinuation(token)
	require.NotNil(t, got)
	assert.Equal(t, core.KindPerpetual, got.Kind)
	assert.Equal(t, uint64(12), got.OrderID)

	all := backend.Continuations()
	assert.Len(t, all, 1)

	backend.DeleteContinuation(token)
	assert.Nil(t, backend.GetContinuation(token))
	assert.Empty(t, backend.Continuations())
}
