package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erain9/tradeshield/pkg/core"
)

func testOrder(t *testing.T) *core.Order {
	t.Helper()

	price := &core.OrderPrice{BaseDenom: "btc", QuoteDenom: "usdc", Rate: fpdecimal.FromFloat(30000.0)}
	escrow := core.Coin{Denom: "btc", Amount: fpdecimal.FromFloat(2.0)}
	order, err := core.NewOrder(7, core.KindSpot, core.TypeStopLoss, "alice", price, escrow, "", 10, time.Unix(1700000000, 0))
	require.NoError(t, err)
	return order
}

func TestSubmitProducesSubmission(t *testing.T) {
	producer := &mockProducer{}
	submitter := NewEngineSubmitterWithProducer(producer)

	require.NoError(t, submitter.Submit(context.Background(), 42, testOrder(t)))
	require.Len(t, producer.sentMessages, 1)

	msg := producer.sentMessages[0]
	assert.Equal(t, topic, msg.Topic)

	key, err := msg.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "42", string(key))

	value, err := msg.Value.Encode()
	require.NoError(t, err)

	var submission settlementSubmission
	require.NoError(t, json.Unmarshal(value, &submission))
	assert.Equal(t, uint64(42), submission.Token)
	assert.Equal(t, core.KindSpot, submission.Kind)
	assert.Equal(t, uint64(7), submission.OrderID)
	assert.Equal(t, core.TypeStopLoss, submission.OrderType)
	assert.Equal(t, "alice", submission.Owner)
	assert.NotEmpty(t, submission.Order)
}

func TestSubmitPropagatesProducerFailure(t *testing.T) {
	producer := &mockProducer{failWith: errors.New("broker down")}
	submitter := NewEngineSubmitterWithProducer(producer)

	err := submitter.Submit(context.Background(), 1, testOrder(t))
	assert.Error(t, err)
	assert.Empty(t, producer.sentMessages)
}
