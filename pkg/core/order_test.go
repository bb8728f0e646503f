package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nikolaydubina/fpdecimal"
)

func testTime() time.Time {
	return time.Unix(1700000000, 0).UTC()
}

func TestValidOrderType(t *testing.T) {
	tests := []struct {
		kind      OrderKind
		orderType OrderType
		want      bool
	}{
		{KindSpot, TypeStopLoss, true},
		{KindSpot, TypeLimitBuy, true},
		{KindSpot, TypeLimitSell, true},
		{KindSpot, TypeMarketBuy, true},
		{KindSpot, TypeLimitOpen, false},
		{KindSpot, TypeMarketClose, false},
		{KindPerpetual, TypeStopLoss, true},
		{KindPerpetual, TypeLimitOpen, true},
		{KindPerpetual, TypeLimitClose, true},
		{KindPerpetual, TypeMarketOpen, true},
		{KindPerpetual, TypeMarketClose, true},
		{KindPerpetual, TypeLimitBuy, false},
		{OrderKind("STAKING"), TypeStopLoss, false},
	}

	for _, tt := range tests {
		if got := ValidOrderType(tt.kind, tt.orderType); got != tt.want {
			t.Errorf("ValidOrderType(%s, %s) = %v, want %v", tt.kind, tt.orderType, got, tt.want)
		}
	}
}

func TestIsMarketType(t *testing.T) {
	market := []OrderType{TypeMarketBuy, TypeMarketOpen, TypeMarketClose}
	conditional := []OrderType{TypeStopLoss, TypeLimitBuy, TypeLimitSell, TypeLimitOpen, TypeLimitClose}

	for _, orderType := range market {
		if !IsMarketType(orderType) {
			t.Errorf("IsMarketType(%s) = false, want true", orderType)
		}
	}
	for _, orderType := range conditional {
		if IsMarketType(orderType) {
			t.Errorf("IsMarketType(%s) = true, want false", orderType)
		}
	}
}

func TestNewOrder(t *testing.T) {
	price := btcPrice(30000)
	escrow := Coin{Denom: "btc", Amount: fpdecimal.FromFloat(2.0)}

	order, err := NewOrder(9, KindSpot, TypeStopLoss, "alice", price, escrow, "", 123, testTime())
	if err != nil {
		t.Fatalf("NewOrder() error = %v", err)
	}

	if order.ID() != 9 {
		t.Errorf("ID() = %d, want 9", order.ID())
	}
	if order.Kind() != KindSpot {
		t.Errorf("Kind() = %s, want %s", order.Kind(), KindSpot)
	}
	if order.Type() != TypeStopLoss {
		t.Errorf("Type() = %s, want %s", order.Type(), TypeStopLoss)
	}
	if order.Owner() != "alice" {
		t.Errorf("Owner() = %s, want alice", order.Owner())
	}
	if order.Status() != StatusPending {
		t.Errorf("Status() = %s, want %s", order.Status(), StatusPending)
	}
	if !order.IsPending() {
		t.Error("IsPending() = false for a new order")
	}
	if order.IsMarket() {
		t.Error("IsMarket() = true for a stop loss")
	}
	if order.CreatedHeight() != 123 {
		t.Errorf("CreatedHeight() = %d, want 123", order.CreatedHeight())
	}
	if !order.CreatedAt().Equal(testTime()) {
		t.Errorf("CreatedAt() = %v, want %v", order.CreatedAt(), testTime())
	}
	if !order.Escrow().Amount.Equal(escrow.Amount) {
		t.Errorf("Escrow() = %v, want %v", order.Escrow(), escrow)
	}
}

func TestNewOrderValidation(t *testing.T) {
	escrow := Coin{Denom: "usdc", Amount: fpdecimal.FromFloat(100.0)}

	tests := []struct {
		name      string
		kind      OrderKind
		orderType OrderType
		owner     string
		price     *OrderPrice
		escrow    Coin
		wantErr   error
	}{
		{"empty owner", KindSpot, TypeLimitBuy, "", btcPrice(30000), escrow, ErrInvalidOwner},
		{"negative amount", KindSpot, TypeLimitBuy, "alice", btcPrice(30000), Coin{Denom: "usdc", Amount: fpdecimal.FromFloat(-1.0)}, ErrInvalidAmount},
		{"conditional without price", KindSpot, TypeLimitBuy, "alice", nil, escrow, ErrInvalidRate},
		{"missing base denom", KindSpot, TypeLimitBuy, "alice", &OrderPrice{QuoteDenom: "usdc", Rate: fpdecimal.FromFloat(1.0)}, escrow, ErrInvalidRate},
		{"market with price", KindPerpetual, TypeMarketOpen, "alice", btcPrice(30000), escrow, ErrInvalidOrderType},
		{"type of other kind", KindPerpetual, TypeMarketBuy, "alice", nil, escrow, ErrInvalidOrderType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder(1, tt.kind, tt.orderType, tt.owner, tt.price, tt.escrow, "", 1, testTime())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewOrder() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOrderJSONRoundTrip(t *testing.T) {
	escrow := Coin{Denom: "btc", Amount: fpdecimal.FromFloat(2.5)}
	original, err := NewOrder(42, KindPerpetual, TypeLimitClose, "alice", btcPrice(31500.25), escrow, "cosmosvaloper1xyz", 999, testTime())
	if err != nil {
		t.Fatalf("NewOrder() error = %v", err)
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Order
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded.ID() != original.ID() {
		t.Errorf("ID = %d, want %d", decoded.ID(), original.ID())
	}
	if decoded.Kind() != original.Kind() || decoded.Type() != original.Type() {
		t.Errorf("kind/type = %s/%s, want %s/%s", decoded.Kind(), decoded.Type(), original.Kind(), original.Type())
	}
	if decoded.Owner() != original.Owner() || decoded.Validator() != original.Validator() {
		t.Errorf("owner/validator mismatch after round trip")
	}
	if decoded.Price() == nil || !decoded.Price().Rate.Equal(original.Price().Rate) {
		t.Errorf("price = %v, want %v", decoded.Price(), original.Price())
	}
	if !decoded.Escrow().Amount.Equal(original.Escrow().Amount) {
		t.Errorf("escrow = %v, want %v", decoded.Escrow(), original.Escrow())
	}
	if decoded.Status() != StatusPending {
		t.Errorf("status = %s, want %s", decoded.Status(), StatusPending)
	}
}

func TestMarketOrderJSONOmitsPrice(t *testing.T) {
	escrow := Coin{Denom: "usdc", Amount: fpdecimal.FromFloat(100.0)}
	order, err := NewOrder(1, KindSpot, TypeMarketBuy, "alice", nil, escrow, "", 1, testTime())
	if err != nil {
		t.Fatalf("NewOrder() error = %v", err)
	}

	data, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Order
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Price() != nil {
		t.Errorf("Price() = %v after round trip, want nil", decoded.Price())
	}
}
