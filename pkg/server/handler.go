package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/erain9/tradeshield/pkg/core"
	"github.com/erain9/tradeshield/pkg/messaging"
	"github.com/erain9/tradeshield/pkg/otel"
)

// Handler dispatches host invocations onto the pending book and the
// settlement coordinator. It owns no state of its own; everything lives
// in the backend behind the book.
type Handler struct {
	book        *core.PendingBook
	coordinator *core.Coordinator
	backend     core.ShieldBackend
	rates       core.RateSource
	sender      messaging.MessageSender
	metrics     *otel.ShieldMetrics
	logger      zerolog.Logger
}

// NewHandler creates a Handler. sender may be nil, in which case no
// lifecycle events are published.
func NewHandler(book *core.PendingBook, coordinator *core.Coordinator, rates core.RateSource, sender messaging.MessageSender) *Handler {
	return &Handler{
		book:        book,
		coordinator: coordinator,
		backend:     book.Backend(),
		rates:       rates,
		sender:      sender,
		metrics:     otel.GetShieldMetrics(),
		logger:      log.With().Str("component", "handler").Logger(),
	}
}

// Execute dispatches a state-changing invocation. Exactly one variant of
// the message must be set.
func (h *Handler) Execute(ctx context.Context, env Env, info MsgInfo, msg *ExecuteMsg) (*Response, error) {
	switch {
	case msg.CreateSpotOrder != nil:
		return h.createOrder(ctx, env, info, core.KindSpot, msg.CreateSpotOrder)
	case msg.CreatePerpetualOrder != nil:
		return h.createOrder(ctx, env, info, core.KindPerpetual, msg.CreatePerpetualOrder)
	case msg.CancelSpotOrder != nil:
		return h.cancelOrder(ctx, info, core.KindSpot, msg.CancelSpotOrder)
	case msg.CancelPerpetualOrder != nil:
		return h.cancelOrder(ctx, info, core.KindPerpetual, msg.CancelPerpetualOrder)
	case msg.CancelSpotOrders != nil:
		return h.cancelOrders(ctx, info, core.KindSpot, msg.CancelSpotOrders)
	case msg.CancelPerpetualOrders != nil:
		return h.cancelOrders(ctx, info, core.KindPerpetual, msg.CancelPerpetualOrders)
	default:
		return nil, fmt.Errorf("empty execute message")
	}
}

func (h *Handler) createOrder(ctx context.Context, env Env, info MsgInfo, kind core.OrderKind, msg *CreateOrderMsg) (*Response, error) {
	order, err := h.book.Create(kind, msg.OrderType, info.Sender, msg.Price, msg.Escrow, msg.Validator, info.Funds, env.Height, env.Time)
	if err != nil {
		return nil, err
	}

	resp := &Response{}
	resp.addEvent("order_created", map[string]string{
		"order_id":   strconv.FormatUint(order.ID(), 10),
		"kind":       string(order.Kind()),
		"order_type": string(order.Type()),
		"owner":      order.Owner(),
	})
	h.metrics.RecordOrderCreated(ctx, string(kind), string(order.Type()))
	h.publishEvent(ctx, order, nil)

	// Market orders bypass the sorted index and go straight to settlement.
	if order.IsMarket() {
		token, err := h.coordinator.Begin(ctx, order)
		if err != nil {
			return nil, err
		}
		resp.addEvent("settlement_submitted", map[string]string{
			"order_id": strconv.FormatUint(order.ID(), 10),
			"kind":     string(order.Kind()),
			"token":    strconv.FormatUint(token, 10),
		})
	}

	return resp, nil
}

func (h *Handler) cancelOrder(ctx context.Context, info MsgInfo, kind core.OrderKind, msg *CancelOrderMsg) (*Response, error) {
	order, refund, err := h.book.Cancel(info.Sender, kind, msg.ID)
	if err != nil {
		return nil, err
	}

	resp := &Response{}
	resp.addTransfer(refund)
	resp.addEvent("order_canceled", map[string]string{
		"order_id": strconv.FormatUint(order.ID(), 10),
		"kind":     string(order.Kind()),
		"owner":    order.Owner(),
	})
	h.metrics.RecordOrderCanceled(ctx, string(kind), "user")
	h.publishEvent(ctx, order, refund)

	return resp, nil
}

func (h *Handler) cancelOrders(ctx context.Context, info MsgInfo, kind core.OrderKind, msg *CancelOrdersMsg) (*Response, error) {
	canceled, refunds, err := h.book.CancelBatch(info.Sender, kind, msg.IDs)
	if err != nil {
		return nil, err
	}

	resp := &Response{}
	for i, order := range canceled {
		resp.addTransfer(refunds[i])
		resp.addEvent("order_canceled", map[string]string{
			"order_id": strconv.FormatUint(order.ID(), 10),
			"kind":     string(order.Kind()),
			"owner":    order.Owner(),
		})
		h.metrics.RecordOrderCanceled(ctx, string(kind), "user")
		h.publishEvent(ctx, order, refunds[i])
	}

	return resp, nil
}

// Sudo dispatches a host-privileged invocation.
func (h *Handler) Sudo(ctx context.Context, env Env, msg *SudoMsg) (*Response, error) {
	switch {
	case msg.ClockEndBlock != nil:
		return h.clockEndBlock(ctx)
	default:
		return nil, fmt.Errorf("empty sudo message")
	}
}

// clockEndBlock scans both kinds for orders whose trigger condition is
// met at the current mark rates and submits each for settlement.
func (h *Handler) clockEndBlock(ctx context.Context) (*Response, error) {
	resp := &Response{}

	for _, kind := range core.Kinds() {
		triggered, err := h.book.Triggered(ctx, kind, h.rates)
		if err != nil {
			return nil, fmt.Errorf("trigger scan for %s: %w", kind, err)
		}

		for _, order := range triggered {
			token, err := h.coordinator.Begin(ctx, order)
			if err != nil {
				return nil, err
			}
			resp.addEvent("settlement_submitted", map[string]string{
				"order_id": strconv.FormatUint(order.ID(), 10),
				"kind":     string(order.Kind()),
				"token":    strconv.FormatUint(token, 10),
			})
		}
	}

	return resp, nil
}

// Reply consumes an asynchronous settlement outcome keyed by the reply
// token handed out at submission time.
func (h *Handler) Reply(ctx context.Context, token uint64, outcome core.SettlementOutcome) (*Response, error) {
	result, err := h.coordinator.Complete(ctx, token, outcome)
	if err != nil {
		return nil, err
	}

	resp := &Response{}
	order := result.Order

	if result.Refund != nil {
		resp.addTransfer(result.Refund)
		resp.addEvent("order_canceled", map[string]string{
			"order_id": strconv.FormatUint(order.ID(), 10),
			"kind":     string(order.Kind()),
			"owner":    order.Owner(),
			"cause":    outcome.Err,
		})
		h.metrics.RecordOrderCanceled(ctx, string(order.Kind()), "settlement_failure")
	} else {
		resp.addEvent("order_executed", map[string]string{
			"order_id": strconv.FormatUint(order.ID(), 10),
			"kind":     string(order.Kind()),
			"owner":    order.Owner(),
		})
		h.metrics.RecordOrderExecuted(ctx, string(order.Kind()))
	}
	h.metrics.RecordSettlementLatency(ctx, time.Since(order.CreatedAt()).Seconds())
	h.publishEvent(ctx, order, result.Refund)

	return resp, nil
}

// Query dispatches a read-only invocation and returns the JSON-encoded
// result.
func (h *Handler) Query(msg *QueryMsg) ([]byte, error) {
	switch {
	case msg.GetOrder != nil:
		order, err := h.book.Get(msg.GetOrder.Kind, msg.GetOrder.ID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(order)

	case msg.GetOrders != nil:
		return h.queryOrders(msg.GetOrders)

	case msg.GetOrderStates != nil:
		return h.queryOrderStates(msg.GetOrderStates)

	default:
		return nil, fmt.Errorf("empty query message")
	}
}

func (h *Handler) queryOrders(q *GetOrdersQuery) ([]byte, error) {
	ids := h.backend.OwnerOrders(q.Kind, q.Owner)

	orders := make([]*core.Order, 0, len(ids))
	for _, id := range ids {
		order := h.backend.GetOrder(q.Kind, id)
		if order == nil {
			continue
		}
		if q.Status != nil && order.Status() != *q.Status {
			continue
		}
		orders = append(orders, order)
	}

	return json.Marshal(struct {
		Orders []*core.Order `json:"orders"`
	}{Orders: orders})
}

func (h *Handler) queryOrderStates(q *GetOrderStatesQuery) ([]byte, error) {
	states := make([]OrderState, 0, len(q.IDs))
	for _, id := range q.IDs {
		order := h.backend.GetOrder(q.Kind, id)
		if order == nil {
			states = append(states, OrderState{ID: id})
			continue
		}
		states = append(states, OrderState{ID: id, Found: true, Status: order.Status()})
	}

	return json.Marshal(struct {
		States []OrderState `json:"states"`
	}{States: states})
}

// publishEvent sends the order's current lifecycle state to the event
// topic. Publishing is best effort and never fails the invocation.
func (h *Handler) publishEvent(ctx context.Context, order *core.Order, refund *core.BankTransfer) {
	if h.sender == nil {
		return
	}

	event := &messaging.OrderEventMessage{
		Kind:      string(order.Kind()),
		OrderID:   order.ID(),
		OrderType: string(order.Type()),
		Owner:     order.Owner(),
		Status:    string(order.Status()),
	}
	if refund != nil {
		event.RefundDenom = refund.Amount.Denom
		event.RefundAmount = refund.Amount.Amount.String()
	}

	if err := h.sender.SendOrderEvent(ctx, event); err != nil {
		h.logger.Warn().
			Err(err).
			Uint64("order_id", order.ID()).
			Msg("failed to publish order event")
	}
}
