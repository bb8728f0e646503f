package messaging

import (
	"context"
	"sync"
)

// MockMessageSender implements MessageSender, recording events for tests
type MockMessageSender struct {
	mu     sync.Mutex
	events []*OrderEventMessage
}

// NewMockMessageSender creates a new MockMessageSender
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{}
}

// SendOrderEvent records the event
func (m *MockMessageSender) SendOrderEvent(_ context.Context, event *OrderEventMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of all recorded events
func (m *MockMessageSender) Events() []*OrderEventMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*OrderEventMessage, len(m.events))
	copy(out, m.events)
	return out
}

// Close implements MessageSender
func (m *MockMessageSender) Close() error {
	return nil
}
