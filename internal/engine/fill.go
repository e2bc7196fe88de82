package engine

import (
	"github.com/shopspring/decimal"

	"ome/internal/common"
)

// Fill is one matched pairing between a taker and a maker, produced during
// Place. Price is always the maker's price (price-time priority with
// maker-price execution — spec.md §4.2 step 2d).
type Fill struct {
	Market    common.Address
	MakerID   OrderID
	TakerID   OrderID
	MakerUser string
	TakerUser string
	Price     decimal.Decimal
	Qty       decimal.Decimal
	// Sequence disambiguates repeated (market, maker, taker) pairs within
	// a single Place call (an order can sweep the same counter-party's
	// residual liquidity at most once, but this keeps the idempotency key
	// from spec.md §4.4 unambiguous in all cases).
	Sequence uint64
}

// PlacementOutcome is the result of OrderBook.Place: zero or more fills
// against resting liquidity, plus the id of the taker order if any
// quantity remained to rest on the book.
type PlacementOutcome struct {
	Fills   []Fill
	Resting *OrderID
}
