package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// SettlementGateway forwards a ready order to the external trading
// engine. Submit only issues the sub-call; the outcome arrives later
// through Coordinator.Complete keyed by the same token.
type SettlementGateway interface {
	Submit(ctx context.Context, token uint64, order *Order) error
}

// GatewayFunc adapts a function to the SettlementGateway interface.
type GatewayFunc func(ctx context.Context, token uint64, order *Order) error

// Submit implements SettlementGateway
func (f GatewayFunc) Submit(ctx context.Context, token uint64, order *Order) error {
	return f(ctx, token, order)
}

// Coordinator drives the two-step settlement saga. Begin removes the
// order from the sorted index, persists a continuation keyed by a fresh
// reply token and submits the sub-call; Complete consumes the token and
// reconciles the order to Executed or Canceled-with-refund.
//
// Between the two steps the order is in limbo: still Pending in the
// record but absent from its bucket, with a live continuation. Cancels
// racing a settlement observe the missing bucket entry and fail cleanly.
type Coordinator struct {
	backend ShieldBackend
	book    *PendingBook
	gateway SettlementGateway
}

// NewCoordinator creates a Coordinator over the book's backend
func NewCoordinator(book *PendingBook, gateway SettlementGateway) *Coordinator {
	return &Coordinator{
		backend: book.Backend(),
		book:    book,
		gateway: gateway,
	}
}

// Begin submits a pending order for settlement and returns the reply
// token. On a synchronous submit failure all local state is restored and
// the error propagates, matching the atomic-commit model.
func (c *Coordinator) Begin(ctx context.Context, order *Order) (uint64, error) {
	if !order.IsPending() {
		return 0, fmt.Errorf("%w: order %d is %s", ErrInvalidStatus, order.ID(), order.Status())
	}

	if !order.IsMarket() {
		if err := c.book.removePending(order); err != nil {
			return 0, err
		}
	}

	token := c.backend.NextReplyID()
	if err := c.backend.StoreContinuation(token, &Continuation{
		Kind:    order.Kind(),
		OrderID: order.ID(),
	}); err != nil {
		return 0, err
	}

	if err := c.gateway.Submit(ctx, token, order); err != nil {
		c.backend.DeleteContinuation(token)
		if !order.IsMarket() {
			if insErr := c.book.insertPending(order); insErr != nil {
				return 0, fmt.Errorf("restore after submit failure: %w", insErr)
			}
		}
		return 0, fmt.Errorf("submit settlement for order %d: %w", order.ID(), err)
	}

	log.Debug().
		Uint64("token", token).
		Uint64("order_id", order.ID()).
		Str("kind", string(order.Kind())).
		Msg("settlement submitted")

	return token, nil
}

// Complete consumes a reply token and finalizes the referenced order.
// A successful outcome transitions it to Executed; a failed outcome is
// recovered locally into Canceled plus a refund, never propagated as an
// invocation failure. A token that was already consumed yields
// ErrContinuationNotFound, so a duplicate reply can never refund twice.
func (c *Coordinator) Complete(ctx context.Context, token uint64, outcome SettlementOutcome) (*SettlementResult, error) {
	cont := c.backend.GetContinuation(token)
	if cont == nil {
		return nil, fmt.Errorf("%w: reply %d", ErrContinuationNotFound, token)
	}
	c.backend.DeleteContinuation(token)

	order := c.backend.GetOrder(cont.Kind, cont.OrderID)
	if order == nil {
		return nil, fmt.Errorf("%w: %s order %d", ErrOrderNotFound, cont.Kind, cont.OrderID)
	}
	if !order.IsPending() {
		return nil, fmt.Errorf("%w: reply %d, order %d is %s",
			ErrOrphanedContinuation, token, order.ID(), order.Status())
	}

	if outcome.Failed() {
		order.setStatus(StatusCanceled)
		if err := c.backend.UpdateOrder(order); err != nil {
			return nil, err
		}
		log.Info().
			Uint64("order_id", order.ID()).
			Str("kind", string(order.Kind())).
			Str("cause", outcome.Err).
			Msg("settlement failed, order canceled and escrow refunded")
		return &SettlementResult{Order: order, Refund: ComputeRefund(order)}, nil
	}

	order.setStatus(StatusExecuted)
	if err := c.backend.UpdateOrder(order); err != nil {
		return nil, err
	}
	log.Info().
		Uint64("order_id", order.ID()).
		Str("kind", string(order.Kind())).
		Msg("order executed")

	return &SettlementResult{Order: order}, nil
}

// Orphans lists reply tokens whose continuation references a missing or
// already-terminal order. A non-empty result indicates operational
// trouble (a dropped reply or manual state surgery); detection only, no
// repair is attempted.
func (c *Coordinator) Orphans() []uint64 {
	var orphaned []uint64
	for token, cont := range c.backend.Continuations() {
		order := c.backend.GetOrder(cont.Kind, cont.OrderID)
		if order == nil || !order.IsPending() {
			orphaned = append(orphaned, token)
		}
	}
	return orphaned
}

// ComputeRefund returns the transfer restoring the full escrow to the
// order owner, or nil when no refund is due. Only Canceled orders left
// the pending state without their escrow being consumed by the external
// call. Pure; the caller attaches the transfer as an outgoing message.
func ComputeRefund(order *Order) *BankTransfer {
	if order.Status() != StatusCanceled {
		return nil
	}
	return &BankTransfer{
		To:     order.Owner(),
		Amount: order.Escrow(),
	}
}
