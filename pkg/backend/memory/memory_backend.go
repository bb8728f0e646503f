package memory

import (
	"sort"
	"sync"

	"github.com/erain9/tradeshield/pkg/core"
)

// kindState holds the per-kind storage: order records, the monotonic id
// allocator and the sorted pending buckets.
type kindState struct {
	counter uint64
	orders  map[uint64]*core.Order
	buckets map[string][]uint64
	owners  map[string][]uint64
}

func newKindState() *kindState {
	return &kindState{
		orders:  make(map[uint64]*core.Order),
		buckets: make(map[string][]uint64),
		owners:  make(map[string][]uint64),
	}
}

// MemoryBackend implements the ShieldBackend interface with in-memory
// storage
type MemoryBackend struct {
	sync.RWMutex
	kinds         map[core.OrderKind]*kindState
	replyCounter  uint64
	continuations map[uint64]*core.Continuation
}

// NewMemoryBackend creates new instance of MemoryBackend
func NewMemoryBackend() *MemoryBackend {
	kinds := make(map[core.OrderKind]*kindState)
	for _, kind := range core.Kinds() {
		kinds[kind] = newKindState()
	}
	return &MemoryBackend{
		kinds:         kinds,
		continuations: make(map[uint64]*core.Continuation),
	}
}

// NextOrderID returns a fresh, strictly increasing order id for the kind
func (b *MemoryBackend) NextOrderID(kind core.OrderKind) uint64 {
	b.Lock()
	defer b.Unlock()

	state := b.kinds[kind]
	state.counter++
	return state.counter
}

// GetOrder retrieves an order by kind and id
func (b *MemoryBackend) GetOrder(kind core.OrderKind, id uint64) *core.Order {
	b.RLock()
	defer b.RUnlock()
	return b.kinds[kind].orders[id]
}

// StoreOrder stores a new order record
func (b *MemoryBackend) StoreOrder(order *core.Order) error {
	b.Lock()
	defer b.Unlock()

	state := b.kinds[order.Kind()]
	if _, exists := state.orders[order.ID()]; exists {
		return core.ErrOrderExists
	}

	state.orders[order.ID()] = order
	return nil
}

// UpdateOrder updates an existing order record
func (b *MemoryBackend) UpdateOrder(order *core.Order) error {
	b.Lock()
	defer b.Unlock()

	state := b.kinds[order.Kind()]
	if _, exists := state.orders[order.ID()]; !exists {
		return core.ErrOrderNotFound
	}

	state.orders[order.ID()] = order
	return nil
}

// DeleteOrder deletes an order record
func (b *MemoryBackend) DeleteOrder(kind core.OrderKind, id uint64) {
	b.Lock()
	defer b.Unlock()
	delete(b.kinds[kind].orders, id)
}

// GetBucket returns a copy of the sorted id vector for a bucket key
func (b *MemoryBackend) GetBucket(kind core.OrderKind, key string) []uint64 {
	b.RLock()
	defer b.RUnlock()

	ids := b.kinds[kind].buckets[key]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// SaveBucket replaces the id vector for a bucket key. An empty vector
// removes the key.
func (b *MemoryBackend) SaveBucket(kind core.OrderKind, key string, ids []uint64) {
	b.Lock()
	defer b.Unlock()

	state := b.kinds[kind]
	if len(ids) == 0 {
		delete(state.buckets, key)
		return
	}

	stored := make([]uint64, len(ids))
	copy(stored, ids)
	state.buckets[key] = stored
}

// BucketKeys returns all non-empty bucket keys for a kind, sorted so
// iteration order is stable across runs
func (b *MemoryBackend) BucketKeys(kind core.OrderKind) []string {
	b.RLock()
	defer b.RUnlock()

	state := b.kinds[kind]
	keys := make([]string, 0, len(state.buckets))
	for key := range state.buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// OwnerOrders returns the owner's order ids in insertion order
func (b *MemoryBackend) OwnerOrders(kind core.OrderKind, owner string) []uint64 {
	b.RLock()
	defer b.RUnlock()

	ids := b.kinds[kind].owners[owner]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// AppendToOwner appends an order id to the owner's secondary index
func (b *MemoryBackend) AppendToOwner(kind core.OrderKind, owner string, id uint64) {
	b.Lock()
	defer b.Unlock()

	state := b.kinds[kind]
	state.owners[owner] = append(state.owners[owner], id)
}

// RemoveFromOwner removes an order id from the owner's secondary index
func (b *MemoryBackend) RemoveFromOwner(kind core.OrderKind, owner string, id uint64) {
	b.Lock()
	defer b.Unlock()

	state := b.kinds[kind]
	ids := state.owners[owner]
	for i, existing := range ids {
		if existing == id {
			state.owners[owner] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// NextReplyID returns a fresh continuation id
func (b *MemoryBackend) NextReplyID() uint64 {
	b.Lock()
	defer b.Unlock()

	b.replyCounter++
	return b.replyCounter
}

// StoreContinuation stores reply metadata keyed by continuation id
func (b *MemoryBackend) StoreContinuation(id uint64, cont *core.Continuation) error {
	b.Lock()
	defer b.Unlock()

	b.continuations[id] = cont
	return nil
}

// GetContinuation retrieves reply metadata by continuation id
func (b *MemoryBackend) GetContinuation(id uint64) *core.Continuation {
	b.RLock()
	defer b.RUnlock()
	return b.continuations[id]
}

// DeleteContinuation erases a consumed continuation
func (b *MemoryBackend) DeleteContinuation(id uint64) {
	b.Lock()
	defer b.Unlock()
	delete(b.continuations, id)
}

// Continuations returns a copy of all live continuations
func (b *MemoryBackend) Continuations() map[uint64]core.Continuation {
	b.RLock()
	defer b.RUnlock()

	out := make(map[uint64]core.Continuation, len(b.continuations))
	for id, cont := range b.continuations {
		out[id] = *cont
	}
	return out
}
