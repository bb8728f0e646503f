package core

import (
	"encoding/json"
	"time"

	"github.com/nikolaydubina/fpdecimal"
)

// OrderType represents type of the order
type OrderType string

// Order types. StopLoss is valid for both kinds; the Limit*/Market*
// variants belong to spot, the *Open/*Close variants to perpetual.
const (
	TypeStopLoss    OrderType = "STOP_LOSS"
	TypeLimitBuy    OrderType = "LIMIT_BUY"
	TypeLimitSell   OrderType = "LIMIT_SELL"
	TypeMarketBuy   OrderType = "MARKET_BUY"
	TypeLimitOpen   OrderType = "LIMIT_OPEN"
	TypeLimitClose  OrderType = "LIMIT_CLOSE"
	TypeMarketOpen  OrderType = "MARKET_OPEN"
	TypeMarketClose OrderType = "MARKET_CLOSE"
)

var spotOrderTypes = map[OrderType]bool{
	TypeStopLoss:  true,
	TypeLimitBuy:  true,
	TypeLimitSell: true,
	TypeMarketBuy: true,
}

var perpetualOrderTypes = map[OrderType]bool{
	TypeStopLoss:    true,
	TypeLimitOpen:   true,
	TypeLimitClose:  true,
	TypeMarketOpen:  true,
	TypeMarketClose: true,
}

// ValidOrderType reports whether the order type belongs to the kind.
func ValidOrderType(kind OrderKind, orderType OrderType) bool {
	switch kind {
	case KindSpot:
		return spotOrderTypes[orderType]
	case KindPerpetual:
		return perpetualOrderTypes[orderType]
	default:
		return false
	}
}

// IsMarketType reports whether the order type settles immediately and
// never enters the sorted pending index.
func IsMarketType(orderType OrderType) bool {
	switch orderType {
	case TypeMarketBuy, TypeMarketOpen, TypeMarketClose:
		return true
	default:
		return false
	}
}

// Order stores information about a pending conditional order. The escrow
// coin is held by the contract from creation until a terminal status.
type Order struct {
	id            uint64
	kind          OrderKind
	orderType     OrderType
	owner         string
	price         *OrderPrice
	escrow        Coin
	validator     string
	status        Status
	createdHeight int64
	createdAt     time.Time
}

// NewOrder creates a new pending Order
func NewOrder(id uint64, kind OrderKind, orderType OrderType, owner string, price *OrderPrice, escrow Coin, validator string, height int64, createdAt time.Time) (*Order, error) {
	if !ValidOrderType(kind, orderType) {
		return nil, ErrInvalidOrderType
	}

	if owner == "" {
		return nil, ErrInvalidOwner
	}

	if escrow.Amount.LessThanOrEqual(fpdecimal.Zero) {
		return nil, ErrInvalidAmount
	}

	if IsMarketType(orderType) {
		if price != nil {
			return nil, ErrInvalidOrderType
		}
	} else {
		if price == nil || price.Rate.LessThanOrEqual(fpdecimal.Zero) {
			return nil, ErrInvalidRate
		}
		if price.BaseDenom == "" || price.QuoteDenom == "" {
			return nil, ErrInvalidRate
		}
	}

	return &Order{
		id:            id,
		kind:          kind,
		orderType:     orderType,
		owner:         owner,
		price:         price,
		escrow:        escrow,
		validator:     validator,
		status:        StatusPending,
		createdHeight: height,
		createdAt:     createdAt,
	}, nil
}

// ID returns the order id
func (o *Order) ID() uint64 {
	return o.id
}

// Kind returns the order kind
func (o *Order) Kind() OrderKind {
	return o.kind
}

// Type returns the order type
func (o *Order) Type() OrderType {
	return o.orderType
}

// Owner returns the owning account address
func (o *Order) Owner() string {
	return o.owner
}

// Price returns the trigger price, nil for market-type orders
func (o *Order) Price() *OrderPrice {
	return o.price
}

// Escrow returns the coin held by the contract for this order
func (o *Order) Escrow() Coin {
	return o.escrow
}

// Validator returns the validator address attached to bonded-denom orders
func (o *Order) Validator() string {
	return o.validator
}

// Status returns the lifecycle status
func (o *Order) Status() Status {
	return o.status
}

// CreatedHeight returns the block height at creation
func (o *Order) CreatedHeight() int64 {
	return o.createdHeight
}

// CreatedAt returns the block time at creation
func (o *Order) CreatedAt() time.Time {
	return o.createdAt
}

// IsMarket reports whether the order settles without index membership
func (o *Order) IsMarket() bool {
	return IsMarketType(o.orderType)
}

// IsPending reports whether the order is still cancelable/settleable
func (o *Order) IsPending() bool {
	return o.status == StatusPending
}

// setStatus transitions the lifecycle status. Terminal statuses are
// never left again; callers check IsPending first.
func (o *Order) setStatus(status Status) {
	o.status = status
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	type OrderJSON struct {
		ID            uint64      `json:"id"`
		Kind          OrderKind   `json:"kind"`
		OrderType     OrderType   `json:"orderType"`
		Owner         string      `json:"owner"`
		Price         *OrderPrice `json:"price,omitempty"`
		Escrow        Coin        `json:"escrow"`
		Validator     string      `json:"validator,omitempty"`
		Status        Status      `json:"status"`
		CreatedHeight int64       `json:"createdHeight"`
		CreatedAt     time.Time   `json:"createdAt"`
	}

	return json.Marshal(OrderJSON{
		ID:            o.id,
		Kind:          o.kind,
		OrderType:     o.orderType,
		Owner:         o.owner,
		Price:         o.price,
		Escrow:        o.escrow,
		Validator:     o.validator,
		Status:        o.status,
		CreatedHeight: o.createdHeight,
		CreatedAt:     o.createdAt,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Order
func (o *Order) UnmarshalJSON(data []byte) error {
	type OrderJSON struct {
		ID            uint64      `json:"id"`
		Kind          OrderKind   `json:"kind"`
		OrderType     OrderType   `json:"orderType"`
		Owner         string      `json:"owner"`
		Price         *OrderPrice `json:"price,omitempty"`
		Escrow        Coin        `json:"escrow"`
		Validator     string      `json:"validator,omitempty"`
		Status        Status      `json:"status"`
		CreatedHeight int64       `json:"createdHeight"`
		CreatedAt     time.Time   `json:"createdAt"`
	}

	var orderJSON OrderJSON
	if err := json.Unmarshal(data, &orderJSON); err != nil {
		return err
	}

	o.id = orderJSON.ID
	o.kind = orderJSON.Kind
	o.orderType = orderJSON.OrderType
	o.owner = orderJSON.Owner
	o.price = orderJSON.Price
	o.escrow = orderJSON.Escrow
	o.validator = orderJSON.Validator
	o.status = orderJSON.Status
	o.createdHeight = orderJSON.CreatedHeight
	o.createdAt = orderJSON.CreatedAt

	return nil
}

// String implements Stringer interface
func (o *Order) String() string {
	j, _ := o.MarshalJSON()
	return string(j)
}
