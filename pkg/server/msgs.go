package server

import (
	"time"

	"github.com/erain9/tradeshield/pkg/core"
)

// Env carries the host-provided block context of an invocation.
type Env struct {
	Height int64     `json:"height"`
	Time   time.Time `json:"time"`
}

// MsgInfo carries the sender and the funds attached to an execute call.
type MsgInfo struct {
	Sender string      `json:"sender"`
	Funds  []core.Coin `json:"funds"`
}

// ExecuteMsg is the tagged union of state-changing entry points. Exactly
// one field is non-nil per invocation.
type ExecuteMsg struct {
	CreateSpotOrder       *CreateOrderMsg  `json:"create_spot_order,omitempty"`
	CreatePerpetualOrder  *CreateOrderMsg  `json:"create_perpetual_order,omitempty"`
	CancelSpotOrder       *CancelOrderMsg  `json:"cancel_spot_order,omitempty"`
	CancelPerpetualOrder  *CancelOrderMsg  `json:"cancel_perpetual_order,omitempty"`
	CancelSpotOrders      *CancelOrdersMsg `json:"cancel_spot_orders,omitempty"`
	CancelPerpetualOrders *CancelOrdersMsg `json:"cancel_perpetual_orders,omitempty"`
}

// CreateOrderMsg creates a pending order. Price is nil for market-type
// orders. The attached funds must equal the declared escrow exactly.
type CreateOrderMsg struct {
	OrderType core.OrderType   `json:"order_type"`
	Price     *core.OrderPrice `json:"price,omitempty"`
	Escrow    core.Coin        `json:"escrow"`
	Validator string           `json:"validator,omitempty"`
}

// CancelOrderMsg cancels a single pending order owned by the sender.
type CancelOrderMsg struct {
	ID uint64 `json:"id"`
}

// CancelOrdersMsg cancels a batch of the sender's orders. An explicit id
// list is all-or-nothing; an empty list cancels every cancelable order
// the sender owns, best effort.
type CancelOrdersMsg struct {
	IDs []uint64 `json:"ids"`
}

// SudoMsg is the tagged union of host-privileged entry points.
type SudoMsg struct {
	ClockEndBlock *ClockEndBlockMsg `json:"clock_end_block,omitempty"`
}

// ClockEndBlockMsg runs the end-of-block trigger scan over both order
// kinds and submits every eligible order for settlement.
type ClockEndBlockMsg struct{}

// QueryMsg is the tagged union of read-only entry points.
type QueryMsg struct {
	GetOrder       *GetOrderQuery       `json:"get_order,omitempty"`
	GetOrders      *GetOrdersQuery      `json:"get_orders,omitempty"`
	GetOrderStates *GetOrderStatesQuery `json:"get_order_states,omitempty"`
}

// GetOrderQuery fetches a single order by kind and id.
type GetOrderQuery struct {
	Kind core.OrderKind `json:"kind"`
	ID   uint64         `json:"id"`
}

// GetOrdersQuery lists an owner's orders of a kind, optionally filtered
// by status.
type GetOrdersQuery struct {
	Kind   core.OrderKind `json:"kind"`
	Owner  string         `json:"owner"`
	Status *core.Status   `json:"status,omitempty"`
}

// GetOrderStatesQuery resolves a batch of ids to their current state.
// Unknown ids are reported with Found=false instead of failing the call.
type GetOrderStatesQuery struct {
	Kind core.OrderKind `json:"kind"`
	IDs  []uint64       `json:"ids"`
}

// OrderState is a single entry of a GetOrderStates response.
type OrderState struct {
	ID     uint64      `json:"id"`
	Found  bool        `json:"found"`
	Status core.Status `json:"status,omitempty"`
}

// Event is a structured attribute bag attached to a response.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Response is the result of an execute, sudo or reply invocation: the
// outgoing bank transfers the host must perform plus emitted events.
type Response struct {
	Transfers []core.BankTransfer `json:"transfers,omitempty"`
	Events    []Event             `json:"events,omitempty"`
}

func (r *Response) addTransfer(t *core.BankTransfer) {
	if t != nil {
		r.Transfers = append(r.Transfers, *t)
	}
}

func (r *Response) addEvent(eventType string, attrs map[string]string) {
	r.Events = append(r.Events, Event{Type: eventType, Attributes: attrs})
}
