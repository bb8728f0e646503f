package messaging

import "context"

// MessageSender defines an interface for publishing order lifecycle
// events. This keeps the core package decoupled from specific
// implementations like Kafka.
type MessageSender interface {
	SendOrderEvent(ctx context.Context, event *OrderEventMessage) error
	Close() error
}

// OrderEventMessage is the message published when an order reaches a
// terminal status or is submitted for settlement.
type OrderEventMessage struct {
	Kind         string
	OrderID      uint64
	OrderType    string
	Owner        string
	Status       string
	RefundDenom  string
	RefundAmount string
}
