package core

import (
	"encoding/json"

	"github.com/nikolaydubina/fpdecimal"
)

// OrderKind separates the two persisted order families. Each kind has its
// own record map, id allocator and pending buckets.
type OrderKind string

// Order kinds
const (
	KindSpot      OrderKind = "SPOT"
	KindPerpetual OrderKind = "PERPETUAL"
)

// Kinds lists all order kinds in iteration order.
func Kinds() []OrderKind {
	return []OrderKind{KindSpot, KindPerpetual}
}

// Status represents the lifecycle status of an order. Executed and
// Canceled are terminal.
type Status string

// Order statuses
const (
	StatusPending  Status = "PENDING"
	StatusExecuted Status = "EXECUTED"
	StatusCanceled Status = "CANCELED"
)

// OrderPrice is the trigger price of a conditional order: the rate at
// which the order becomes eligible for settlement, quoted as quote denom
// per base denom.
type OrderPrice struct {
	BaseDenom  string
	QuoteDenom string
	Rate       fpdecimal.Decimal
}

// MarshalJSON implements Marshaler interface
func (p *OrderPrice) MarshalJSON() ([]byte, error) {
	customStruct := struct {
		BaseDenom  string `json:"baseDenom"`
		QuoteDenom string `json:"quoteDenom"`
		Rate       string `json:"rate"`
	}{
		BaseDenom:  p.BaseDenom,
		QuoteDenom: p.QuoteDenom,
		Rate:       p.Rate.String(),
	}
	return json.Marshal(customStruct)
}

// UnmarshalJSON implements Unmarshaler interface
func (p *OrderPrice) UnmarshalJSON(data []byte) error {
	var priceJSON struct {
		BaseDenom  string `json:"baseDenom"`
		QuoteDenom string `json:"quoteDenom"`
		Rate       string `json:"rate"`
	}
	if err := json.Unmarshal(data, &priceJSON); err != nil {
		return err
	}

	p.BaseDenom = priceJSON.BaseDenom
	p.QuoteDenom = priceJSON.QuoteDenom

	rate, err := fpdecimal.FromString(priceJSON.Rate)
	if err != nil {
		rate = fpdecimal.Zero
	}
	p.Rate = rate

	return nil
}

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string
	Amount fpdecimal.Decimal
}

// MarshalJSON implements Marshaler interface
func (c Coin) MarshalJSON() ([]byte, error) {
	customStruct := struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	}{
		Denom:  c.Denom,
		Amount: c.Amount.String(),
	}
	return json.Marshal(customStruct)
}

// UnmarshalJSON implements Unmarshaler interface
func (c *Coin) UnmarshalJSON(data []byte) error {
	var coinJSON struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(data, &coinJSON); err != nil {
		return err
	}

	c.Denom = coinJSON.Denom

	amount, err := fpdecimal.FromString(coinJSON.Amount)
	if err != nil {
		amount = fpdecimal.Zero
	}
	c.Amount = amount

	return nil
}

// BankTransfer is an outgoing funds movement the caller is responsible
// for attaching to the invocation response.
type BankTransfer struct {
	To     string `json:"to"`
	Amount Coin   `json:"amount"`
}

// Continuation is the reply metadata persisted between the settlement
// submission and the asynchronous outcome delivery.
type Continuation struct {
	Kind    OrderKind `json:"kind"`
	OrderID uint64    `json:"orderID"`
}

// SettlementOutcome carries the result of the external trading-engine
// sub-call as delivered by the host reply. An empty Err means success.
type SettlementOutcome struct {
	Err     string
	Payload json.RawMessage
}

// Failed reports whether the sub-call failed.
func (o SettlementOutcome) Failed() bool {
	return o.Err != ""
}

// SettlementResult is the reconciled terminal state of an order after a
// reply has been consumed.
type SettlementResult struct {
	Order  *Order
	Refund *BankTransfer
}
