package core

import (
	"context"
	"fmt"
	"time"

	"github.com/nikolaydubina/fpdecimal"
)

// PendingBook maintains the pending-order store and the per-bucket
// sorted id lists over a ShieldBackend.
//
// Each bucket is a vector of order ids sorted ascending by trigger rate.
// The vector stores bare ids, so every binary-search probe re-reads the
// referenced order record; a missing record during a probe means the
// bucket and the order map disagree and is surfaced as ErrBucketCorrupted.
type PendingBook struct {
	backend      ShieldBackend
	bondedDenoms map[string]struct{}
}

// BookOption configures a PendingBook
type BookOption func(*PendingBook)

// WithBondedDenoms sets the denoms that require a validator address on
// order creation.
func WithBondedDenoms(denoms ...string) BookOption {
	return func(b *PendingBook) {
		for _, denom := range denoms {
			b.bondedDenoms[denom] = struct{}{}
		}
	}
}

// NewPendingBook creates a PendingBook object with a backend
func NewPendingBook(backend ShieldBackend, opts ...BookOption) *PendingBook {
	book := &PendingBook{
		backend:      backend,
		bondedDenoms: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(book)
	}
	return book
}

// Backend returns the underlying storage
func (b *PendingBook) Backend() ShieldBackend {
	return b.backend
}

// Create validates and persists a new pending order: allocates a fresh
// id, stores the record, appends it to the owner index and, for
// trigger-priced orders, inserts the id into its sorted bucket. All
// validation happens before the first write.
func (b *PendingBook) Create(kind OrderKind, orderType OrderType, owner string, price *OrderPrice, escrow Coin, validator string, funds []Coin, height int64, now time.Time) (*Order, error) {
	if err := b.checkFunds(escrow, funds); err != nil {
		return nil, err
	}

	if _, bonded := b.bondedDenoms[escrow.Denom]; bonded && validator == "" {
		return nil, fmt.Errorf("%w for denom %s", ErrMissingValidator, escrow.Denom)
	}

	id := b.backend.NextOrderID(kind)

	order, err := NewOrder(id, kind, orderType, owner, price, escrow, validator, height, now)
	if err != nil {
		return nil, err
	}

	if err := b.backend.StoreOrder(order); err != nil {
		return nil, err
	}
	b.backend.AppendToOwner(kind, owner, id)

	if !order.IsMarket() {
		if err := b.insertPending(order); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// checkFunds verifies the attached funds are exactly the declared escrow.
func (b *PendingBook) checkFunds(escrow Coin, funds []Coin) error {
	if len(funds) != 1 {
		return fmt.Errorf("%w: expected exactly one coin, got %d", ErrFundsMismatch, len(funds))
	}
	if funds[0].Denom != escrow.Denom || !funds[0].Amount.Equal(escrow.Amount) {
		return fmt.Errorf("%w: declared %s%s, attached %s%s",
			ErrFundsMismatch, escrow.Amount, escrow.Denom, funds[0].Amount, funds[0].Denom)
	}
	return nil
}

// Get returns an order by kind and id, or ErrOrderNotFound. A missing
// record means the order never existed or was purged, not canceled.
func (b *PendingBook) Get(kind OrderKind, id uint64) (*Order, error) {
	order := b.backend.GetOrder(kind, id)
	if order == nil {
		return nil, fmt.Errorf("%w: %s order %d", ErrOrderNotFound, kind, id)
	}
	return order, nil
}

// Cancel transitions a pending order to Canceled on behalf of its owner,
// removes it from its sorted bucket and returns the escrow refund.
func (b *PendingBook) Cancel(sender string, kind OrderKind, id uint64) (*Order, *BankTransfer, error) {
	order, err := b.Get(kind, id)
	if err != nil {
		return nil, nil, err
	}

	if order.Owner() != sender {
		return nil, nil, fmt.Errorf("%w: %s does not own order %d", ErrUnauthorized, sender, id)
	}

	if !order.IsPending() {
		return nil, nil, fmt.Errorf("%w: order %d is %s", ErrInvalidStatus, id, order.Status())
	}

	// A pending order that is absent from its bucket is mid-settlement;
	// removePending fails and the cancel aborts without mutation.
	if !order.IsMarket() {
		if err := b.removePending(order); err != nil {
			return nil, nil, err
		}
	}

	order.setStatus(StatusCanceled)
	if err := b.backend.UpdateOrder(order); err != nil {
		return nil, nil, err
	}

	return order, ComputeRefund(order), nil
}

// CancelBatch cancels multiple orders owned by sender.
//
// With an explicit id list the batch is all-or-nothing: every target is
// validated (exists, owned by sender, pending, still indexed) before any
// mutation, and one disqualified order fails the whole batch. With an
// empty list the batch is best-effort over all of the sender's orders:
// non-pending or mid-settlement orders are silently skipped. An explicit
// list is precise user intent; an implicit sweep tolerates races.
func (b *PendingBook) CancelBatch(sender string, kind OrderKind, ids []uint64) ([]*Order, []*BankTransfer, error) {
	explicit := len(ids) > 0

	if !explicit {
		ids = b.backend.OwnerOrders(kind, sender)
	}

	// A repeated id must not reach the mutation pass: the second removal
	// would fail after the first already committed.
	seen := make(map[uint64]struct{}, len(ids))

	targets := make([]*Order, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		order := b.backend.GetOrder(kind, id)
		if order == nil {
			if explicit {
				return nil, nil, fmt.Errorf("%w: %s order %d", ErrOrderNotFound, kind, id)
			}
			continue
		}
		if order.Owner() != sender {
			if explicit {
				return nil, nil, fmt.Errorf("%w: %s does not own order %d", ErrUnauthorized, sender, id)
			}
			continue
		}
		if !order.IsPending() {
			if explicit {
				return nil, nil, fmt.Errorf("%w: order %d is %s", ErrInvalidStatus, id, order.Status())
			}
			continue
		}
		if !order.IsMarket() {
			indexed, err := b.containsPending(order)
			if err != nil {
				return nil, nil, err
			}
			if !indexed {
				if explicit {
					return nil, nil, fmt.Errorf("%w: order %d", ErrNotInBucket, id)
				}
				continue
			}
		}
		targets = append(targets, order)
	}

	canceled := make([]*Order, 0, len(targets))
	refunds := make([]*BankTransfer, 0, len(targets))
	for _, order := range targets {
		if !order.IsMarket() {
			if err := b.removePending(order); err != nil {
				return nil, nil, err
			}
		}
		order.setStatus(StatusCanceled)
		if err := b.backend.UpdateOrder(order); err != nil {
			return nil, nil, err
		}
		canceled = append(canceled, order)
		refunds = append(refunds, ComputeRefund(order))
	}

	return canceled, refunds, nil
}

// Purge deletes a terminal order record and its owner index entry. A
// purged id is gone for good; a later Get reports NotFound, not
// Canceled. Pending orders cannot be purged.
func (b *PendingBook) Purge(sender string, kind OrderKind, id uint64) error {
	order, err := b.Get(kind, id)
	if err != nil {
		return err
	}

	if order.Owner() != sender {
		return fmt.Errorf("%w: %s does not own order %d", ErrUnauthorized, sender, id)
	}

	if order.IsPending() {
		return fmt.Errorf("%w: order %d is %s", ErrInvalidStatus, id, order.Status())
	}

	b.backend.DeleteOrder(kind, id)
	b.backend.RemoveFromOwner(kind, order.Owner(), id)
	return nil
}

// RateSource supplies the current mark rate for a trading pair.
type RateSource interface {
	MarkRate(ctx context.Context, baseDenom, quoteDenom string) (fpdecimal.Decimal, error)
}

// triggersAtOrBelow reports whether the order type fires when the mark
// rate falls to or below the trigger rate. The remaining trigger-priced
// types fire when the mark rate rises to or above it.
func triggersAtOrBelow(orderType OrderType) bool {
	switch orderType {
	case TypeStopLoss, TypeLimitBuy, TypeLimitOpen:
		return true
	default:
		return false
	}
}

// Triggered returns the pending orders of a kind whose trigger condition
// is met at the current mark rates, bucket by bucket. Because buckets are
// sorted ascending by rate, the eligible ids are always a contiguous
// prefix or suffix located with the same binary search used for inserts.
func (b *PendingBook) Triggered(ctx context.Context, kind OrderKind, rates RateSource) ([]*Order, error) {
	var triggered []*Order

	for _, key := range b.backend.BucketKeys(kind) {
		orderType, baseDenom, quoteDenom, ok := SplitBucketKey(key)
		if !ok {
			return nil, fmt.Errorf("%w: malformed key %q", ErrBucketCorrupted, key)
		}

		mark, err := rates.MarkRate(ctx, baseDenom, quoteDenom)
		if err != nil {
			return nil, fmt.Errorf("mark rate for %s/%s: %w", baseDenom, quoteDenom, err)
		}

		ids := b.backend.GetBucket(kind, key)

		var eligible []uint64
		if triggersAtOrBelow(orderType) {
			// Suffix: entries with trigger rate >= mark.
			pos, err := b.searchFirstGE(kind, ids, mark)
			if err != nil {
				return nil, err
			}
			eligible = ids[pos:]
		} else {
			// Prefix: entries with trigger rate <= mark.
			pos, err := b.searchFirstGreater(kind, ids, mark)
			if err != nil {
				return nil, err
			}
			eligible = ids[:pos]
		}

		for _, id := range eligible {
			order := b.backend.GetOrder(kind, id)
			if order == nil {
				return nil, fmt.Errorf("%w: bucket %q references missing order %d", ErrBucketCorrupted, key, id)
			}
			triggered = append(triggered, order)
		}
	}

	return triggered, nil
}

// index maintenance

// insertPending inserts the order id into its sorted bucket. The
// insertion point is after the run of equal-rate entries, so orders at
// the same price level keep FIFO arrival order.
func (b *PendingBook) insertPending(order *Order) error {
	key, err := PriceBucketKey(order)
	if err != nil {
		return err
	}

	ids := b.backend.GetBucket(order.Kind(), key)
	rate := order.Price().Rate

	pos, err := b.searchFirstGreater(order.Kind(), ids, rate)
	if err != nil {
		return err
	}

	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = order.ID()

	b.backend.SaveBucket(order.Kind(), key, ids)
	return nil
}

// removePending removes the order id from its sorted bucket. Binary
// search locates the equal-rate run, a linear scan inside it finds the
// exact id. An absent id signals index corruption and is surfaced, never
// silently ignored.
func (b *PendingBook) removePending(order *Order) error {
	key, err := PriceBucketKey(order)
	if err != nil {
		return err
	}

	ids := b.backend.GetBucket(order.Kind(), key)
	pos, err := b.scanForID(order.Kind(), ids, order.Price().Rate, order.ID())
	if err != nil {
		return err
	}
	if pos < 0 {
		return fmt.Errorf("%w: order %d, bucket %q", ErrNotInBucket, order.ID(), key)
	}

	ids = append(ids[:pos], ids[pos+1:]...)
	b.backend.SaveBucket(order.Kind(), key, ids)
	return nil
}

// containsPending reports whether the order id is present in its bucket
// without mutating it.
func (b *PendingBook) containsPending(order *Order) (bool, error) {
	key, err := PriceBucketKey(order)
	if err != nil {
		return false, err
	}

	ids := b.backend.GetBucket(order.Kind(), key)
	pos, err := b.scanForID(order.Kind(), ids, order.Price().Rate, order.ID())
	if err != nil {
		return false, err
	}
	return pos >= 0, nil
}

// searchFirstGE binary-searches ids for the first position whose
// referenced order has a trigger rate >= rate. Every probe fetches the
// midpoint's order record from the backend.
func (b *PendingBook) searchFirstGE(kind OrderKind, ids []uint64, rate fpdecimal.Decimal) (int, error) {
	lo, hi := 0, len(ids)
	for lo < hi {
		mid := (lo + hi) / 2
		probe, err := b.rateAt(kind, ids[mid])
		if err != nil {
			return 0, err
		}
		if probe.LessThan(rate) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// searchFirstGreater returns the position just past the run of entries
// with trigger rate == rate, i.e. the FIFO insertion point.
func (b *PendingBook) searchFirstGreater(kind OrderKind, ids []uint64, rate fpdecimal.Decimal) (int, error) {
	pos, err := b.searchFirstGE(kind, ids, rate)
	if err != nil {
		return 0, err
	}
	for pos < len(ids) {
		probe, err := b.rateAt(kind, ids[pos])
		if err != nil {
			return 0, err
		}
		if !probe.Equal(rate) {
			break
		}
		pos++
	}
	return pos, nil
}

// scanForID locates the exact id inside the equal-rate run starting at
// the binary-search position. Returns -1 when the id is absent.
func (b *PendingBook) scanForID(kind OrderKind, ids []uint64, rate fpdecimal.Decimal, id uint64) (int, error) {
	pos, err := b.searchFirstGE(kind, ids, rate)
	if err != nil {
		return 0, err
	}
	for i := pos; i < len(ids); i++ {
		if ids[i] == id {
			return i, nil
		}
		probe, err := b.rateAt(kind, ids[i])
		if err != nil {
			return 0, err
		}
		if probe.GreaterThan(rate) {
			break
		}
	}
	return -1, nil
}

// rateAt fetches the trigger rate of the referenced order record.
func (b *PendingBook) rateAt(kind OrderKind, id uint64) (fpdecimal.Decimal, error) {
	order := b.backend.GetOrder(kind, id)
	if order == nil || order.Price() == nil {
		return fpdecimal.Zero, fmt.Errorf("%w: probe of order %d failed", ErrBucketCorrupted, id)
	}
	return order.Price().Rate, nil
}
