package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ome/internal/common"
)

// Order is the record of a trading intent, plus mutable fill bookkeeping.
// It is immutable after submission except for Remaining/Status, which are
// mutated by ApplyFill, and ID/CreatedAt, which are assigned once by the
// book: ID on acceptance, CreatedAt when the order rests.
type Order struct {
	ID        OrderID
	User      string
	Market    common.Address
	Side      Side
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Remaining decimal.Decimal
	Status    Status
	CreatedAt uint64
	Signature []byte
}

// NewOrder validates and constructs a fresh, not-yet-resting order. The
// returned order has Remaining == Amount, Status == Open, and an unset
// ID/CreatedAt — OrderBook.Place assigns the ID to every accepted order and
// CreatedAt only if the order rests.
func NewOrder(user string, market common.Address, side Side, price, amount decimal.Decimal, signature []byte) (Order, error) {
	if price.Sign() <= 0 {
		return Order{}, fmt.Errorf("%w: price must be positive, got %s", ErrInvalidOrder, price)
	}
	if amount.Sign() <= 0 {
		return Order{}, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidOrder, amount)
	}
	if side != Bid && side != Ask {
		return Order{}, fmt.Errorf("%w: unknown side", ErrInvalidOrder)
	}
	return Order{
		User:      user,
		Market:    market,
		Side:      side,
		Price:     price,
		Amount:    amount,
		Remaining: amount,
		Status:    Open,
		Signature: signature,
	}, nil
}

// ApplyFill reduces Remaining by qty and advances Status. qty must be in
// (0, Remaining] and the order must not already be terminal.
func (o *Order) ApplyFill(qty decimal.Decimal) error {
	if o.Status != Open && o.Status != Partial {
		return fmt.Errorf("%w: order %s is terminal", ErrInvalidFill, o.ID)
	}
	if qty.Sign() <= 0 || qty.GreaterThan(o.Remaining) {
		return fmt.Errorf("%w: fill qty %s out of range for remaining %s", ErrInvalidFill, qty, o.Remaining)
	}
	o.Remaining = o.Remaining.Sub(qty)
	if o.Remaining.IsZero() {
		o.Status = Filled
	} else {
		o.Status = Partial
	}
	return nil
}

// IsTerminal reports whether the order can no longer be mutated.
func (o *Order) IsTerminal() bool {
	return o.Status == Filled || o.Status == Cancelled
}
