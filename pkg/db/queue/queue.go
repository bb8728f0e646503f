package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/IBM/sarama"

	"github.com/erain9/tradeshield/pkg/core"
)

var (
	brokerList = "localhost:9092"
	topic      = "trade-engine-submit"
	maxRetry   = 5
)

// SetBrokerList overrides the Kafka broker list (comma separated)
func SetBrokerList(brokers string) {
	brokerList = brokers
}

// SetTopic overrides the settlement submission topic
func SetTopic(t string) {
	topic = t
}

// settlementSubmission is the wire format consumed by the external
// trading engine. The reply token travels with the order so the engine
// can address its outcome back to the right continuation.
type settlementSubmission struct {
	Token     uint64          `json:"token"`
	Kind      core.OrderKind  `json:"kind"`
	OrderID   uint64          `json:"orderID"`
	OrderType core.OrderType  `json:"orderType"`
	Owner     string          `json:"owner"`
	Order     json.RawMessage `json:"order"`
}

// EngineSubmitter implements the core.SettlementGateway interface by
// producing settlement submissions to the trading-engine Kafka topic.
type EngineSubmitter struct {
	producer sarama.SyncProducer
}

// NewEngineSubmitter creates an EngineSubmitter with a sync producer
// connected to the configured broker list.
func NewEngineSubmitter() (*EngineSubmitter, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = maxRetry
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(strings.Split(brokerList, ","), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &EngineSubmitter{producer: producer}, nil
}

// NewEngineSubmitterWithProducer creates an EngineSubmitter around an
// existing producer. Used by tests.
func NewEngineSubmitterWithProducer(producer sarama.SyncProducer) *EngineSubmitter {
	return &EngineSubmitter{producer: producer}
}

// Submit implements core.SettlementGateway
func (s *EngineSubmitter) Submit(_ context.Context, token uint64, order *core.Order) error {
	orderJSON, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	payload, err := json.Marshal(settlementSubmission{
		Token:     token,
		Kind:      order.Kind(),
		OrderID:   order.ID(),
		OrderType: order.Type(),
		Owner:     order.Owner(),
		Order:     orderJSON,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal settlement submission: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(token, 10)),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send settlement submission: %w", err)
	}

	return nil
}

// Close closes the underlying producer
func (s *EngineSubmitter) Close() error {
	return s.producer.Close()
}
