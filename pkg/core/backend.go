package core

// ShieldBackend defines the storage interface for different backend
// implementations. It is the one place the persisted schema is visible:
// per-kind order records keyed by id, per-kind sorted pending buckets
// keyed by the price bucket key, a per-owner secondary index, and the
// continuation map shared by both kinds.
type ShieldBackend interface {
	// Order record operations
	NextOrderID(kind OrderKind) uint64
	GetOrder(kind OrderKind, id uint64) *Order
	StoreOrder(order *Order) error
	UpdateOrder(order *Order) error
	DeleteOrder(kind OrderKind, id uint64)

	// Sorted pending bucket operations. Buckets are whole-value id
	// vectors; SaveBucket with an empty slice removes the key.
	GetBucket(kind OrderKind, key string) []uint64
	SaveBucket(kind OrderKind, key string, ids []uint64)
	BucketKeys(kind OrderKind) []string

	// Owner secondary index, insertion-ordered
	OwnerOrders(kind OrderKind, owner string) []uint64
	AppendToOwner(kind OrderKind, owner string, id uint64)
	RemoveFromOwner(kind OrderKind, owner string, id uint64)

	// Continuation operations
	NextReplyID() uint64
	StoreContinuation(id uint64, cont *Continuation) error
	GetContinuation(id uint64) *Continuation
	DeleteContinuation(id uint64)
	Continuations() map[uint64]Continuation
}
