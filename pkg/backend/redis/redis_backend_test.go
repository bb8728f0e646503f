package redis

import (
	"fmt"
	"testing"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erain9/tradeshield/pkg/core"
	"github.com/erain9/tradeshield/pkg/testutil"
)

const testRedisAddr = "localhost:6379"

func newTestBackend(t *testing.T) *RedisBackend {
	t.Helper()
	testutil.SkipIfRedisUnavailable(t, testRedisAddr)

	SetDefaultRedisOptions(&RedisOptions{Addr: testRedisAddr})
	client := GetRedisClient()
	t.Cleanup(func() { _ = client.Close() })

	prefix := fmt.Sprintf("tradeshield-test:%d", time.Now().UnixNano())
	return NewRedisBackend(client, prefix, zap.NewNop())
}

func TestRedisOrderLifecycle(t *testing.T) {
	backend := newTestBackend(t)

	id := backend.NextOrderID(core.KindSpot)
	require.NotZero(t, id)
	assert.Equal(t, id+1, backend.NextOrderID(core.KindSpot))

	price := &core.OrderPrice{BaseDenom: "btc", QuoteDenom: "usdc", Rate: fpdecimal.FromFloat(30000.0)}
	escrow := core.Coin{Denom: "btc", Amount: fpdecimal.FromFloat(2.0)}
	order, err := core.NewOrder(id, core.KindSpot, core.TypeStopLoss, "alice", price, escrow, "", 10, time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, backend.StoreOrder(order))
	assert.ErrorIs(t, backend.StoreOrder(order), core.ErrOrderExists)

	got := backend.GetOrder(core.KindSpot, id)
	require.NotNil(t, got)
	assert.Equal(t, order.ID(), got.ID())
	assert.Equal(t, order.Owner(), got.Owner())
	assert.True(t, got.Price().Rate.Equal(price.Rate))

	backend.DeleteOrder(core.KindSpot, id)
	assert.Nil(t, backend.GetOrder(core.KindSpot, id))
}

func TestRedisBucketRoundTrip(t *testing.T) {
	backend := newTestBackend(t)
	key := "STOP_LOSS\nbtc\nusdc"

	assert.Empty(t, backend.GetBucket(core.KindSpot, key))

	backend.SaveBucket(core.KindSpot, key, []uint64{2, 5, 9})
	assert.Equal(t, []uint64{2, 5, 9}, backend.GetBucket(core.KindSpot, key))
	assert.Equal(t, []string{key}, backend.BucketKeys(core.KindSpot))

	// Keys come back sorted, not in SMembers order
	earlier := "LIMIT_BUY\nbtc\nusdc"
	backend.SaveBucket(core.KindSpot, earlier, []uint64{1})
	assert.Equal(t, []string{earlier, key}, backend.BucketKeys(core.KindSpot))
	backend.SaveBucket(core.KindSpot, earlier, nil)

	backend.SaveBucket(core.KindSpot, key, nil)
	assert.Empty(t, backend.GetBucket(core.KindSpot, key))
	assert.Empty(t, backend.BucketKeys(core.KindSpot))
}

func TestRedisOwnerIndex(t *testing.T) {
	backend := newTestBackend(t)

	backend.AppendToOwner(core.KindPerpetual, "alice", 3)
	backend.AppendToOwner(core.KindPerpetual, "alice", 1)
	assert.Equal(t, []uint64{3, 1}, backend.OwnerOrders(core.KindPerpetual, "alice"))

	backend.RemoveFromOwner(core.KindPerpetual, "alice", 3)
	assert.Equal(t, []uint64{1}, backend.OwnerOrders(core.KindPerpetual, "alice"))
}

func TestRedisContinuations(t *testing.T) {
	backend := newTestBackend(t)

	token := backend.NextReplyID()
	require.NotZero(t, token)

	require.NoError(t, backend.StoreContinuation(token, &core.Continuation{Kind: core.KindSpot, OrderID: 8}))

	cont := backend.GetContinuation(token)
	require.NotNil(t, cont)
	assert.Equal(t, uint64(8), cont.OrderID)

	all := backend.Continuations()
	assert.Contains(t, all, token)

	backend.DeleteContinuation(token)
	assert.Nil(t, backend.GetContinuation(token))
}
