package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"ome/internal/common"
)

// priceLevel is a FIFO queue of live orders resting at a single price.
// orders[0] is the oldest (front of queue); new orders are appended at the
// tail.
type priceLevel struct {
	price  decimal.Decimal
	orders []*Order
}

// priceLevels is the ordered-by-price ladder for one side of a book.
type priceLevels = btree.BTreeG[*priceLevel]

// indexEntry locates a resting order's (side, price) so it can be found in
// O(log n) for cancel/update without a linear scan of the ladder.
type indexEntry struct {
	side  Side
	price decimal.Decimal
}

// DepthLevel is one row of an aggregated depth view: a price and the
// summed remaining quantity of every order resting at it.
type DepthLevel struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// OrderBook is a single market's order book: two price-ordered ladders,
// each holding time-ordered queues of live orders, plus an index for
// O(log n) order lookup by id.
type OrderBook struct {
	Market common.Address

	bids *priceLevels // sorted highest price first
	asks *priceLevels // sorted lowest price first

	index     map[OrderID]indexEntry
	completed map[OrderID]*Order // terminal orders, kept addressable by id

	seq uint64 // monotonic created_at generator
}

// NewBook returns an empty book for the given market.
func NewBook(market common.Address) *OrderBook {
	return &OrderBook{
		Market: market,
		bids: btree.NewBTreeG(func(a, b *priceLevel) bool {
			return a.price.GreaterThan(b.price)
		}),
		asks: btree.NewBTreeG(func(a, b *priceLevel) bool {
			return a.price.LessThan(b.price)
		}),
		index:     make(map[OrderID]indexEntry),
		completed: make(map[OrderID]*Order),
	}
}

func (b *OrderBook) ladder(side Side) *priceLevels {
	if side == Bid {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) opposite(side Side) *priceLevels {
	if side == Bid {
		return b.asks
	}
	return b.bids
}

// Place is the central matching algorithm: price-time priority, maker-price
// execution. It takes ownership of order (expected Remaining == Amount,
// Status == Open, zero-value ID/CreatedAt) and returns the fills produced
// plus the id of the resting remainder, if any.
func (b *OrderBook) Place(order Order) (*PlacementOutcome, error) {
	if order.Remaining.Sign() <= 0 {
		return nil, fmt.Errorf("%w: zero or negative quantity", ErrInvalidOrder)
	}
	if order.Price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive price", ErrInvalidOrder)
	}
	if order.Side != Bid && order.Side != Ask {
		return nil, fmt.Errorf("%w: unknown side", ErrInvalidOrder)
	}

	id, err := newOrderID()
	if err != nil {
		return nil, err
	}
	order.ID = id
	order.Market = b.Market

	outcome := &PlacementOutcome{}
	opposite := b.opposite(order.Side)

	var fillSeq uint64
	for order.Remaining.Sign() > 0 {
		best, ok := opposite.MinMut()
		if !ok {
			break
		}

		var crossed bool
		if order.Side == Bid {
			crossed = order.Price.GreaterThanOrEqual(best.price)
		} else {
			crossed = order.Price.LessThanOrEqual(best.price)
		}
		if !crossed {
			break
		}

		maker := best.orders[0]
		qty := decimal.Min(order.Remaining, maker.Remaining)
		tradePrice := best.price

		if err := order.ApplyFill(qty); err != nil {
			return nil, err
		}
		if err := maker.ApplyFill(qty); err != nil {
			return nil, err
		}

		fillSeq++
		outcome.Fills = append(outcome.Fills, Fill{
			Market:    b.Market,
			MakerID:   maker.ID,
			TakerID:   order.ID,
			MakerUser: maker.User,
			TakerUser: order.User,
			Price:     tradePrice,
			Qty:       qty,
			Sequence:  fillSeq,
		})

		if maker.Remaining.IsZero() {
			best.orders = best.orders[1:]
			delete(b.index, maker.ID)
			b.completed[maker.ID] = maker
			if len(best.orders) == 0 {
				opposite.Delete(best)
			}
		}
	}

	if order.Remaining.Sign() > 0 {
		b.seq++
		order.CreatedAt = b.seq
		own := b.ladder(order.Side)
		level, ok := own.GetMut(&priceLevel{price: order.Price})
		restingOrder := order
		if ok {
			level.orders = append(level.orders, &restingOrder)
		} else {
			own.Set(&priceLevel{price: order.Price, orders: []*Order{&restingOrder}})
		}
		b.index[order.ID] = indexEntry{side: order.Side, price: order.Price}
		restingID := order.ID
		outcome.Resting = &restingID
	} else {
		final := order
		b.completed[order.ID] = &final
	}

	return outcome, nil
}

// Cancel removes a resting order from its level, purging the level if it
// becomes empty. Fails with ErrNotFound if the order is unknown or already
// terminal — both cases leave no entry in the index.
func (b *OrderBook) Cancel(id OrderID) (*Order, error) {
	entry, ok := b.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	ladder := b.ladder(entry.side)
	level, ok := ladder.GetMut(&priceLevel{price: entry.price})
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}

	idx := -1
	for i, o := range level.orders {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}

	cancelled := level.orders[idx]
	level.orders = append(level.orders[:idx:idx], level.orders[idx+1:]...)
	if len(level.orders) == 0 {
		ladder.Delete(level)
	}

	delete(b.index, id)
	cancelled.Status = Cancelled
	b.completed[id] = cancelled
	return cancelled, nil
}

// Update is equivalent to cancel + place with a fresh created_at: any
// change to price or size forfeits queue position, matching standard
// venue behavior. Either newPrice or newAmount may be nil to keep the
// existing value.
func (b *OrderBook) Update(id OrderID, newPrice, newAmount *decimal.Decimal) (*PlacementOutcome, error) {
	existing, ok := b.GetOrder(id)
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if existing.IsTerminal() {
		return nil, fmt.Errorf("%w: order %s is terminal", ErrConflict, id)
	}

	price := existing.Price
	if newPrice != nil {
		price = *newPrice
	}
	amount := existing.Amount
	if newAmount != nil {
		amount = *newAmount
	}

	// Validate the replacement before touching the book: a rejected
	// update must leave the existing order resting untouched rather than
	// cancelling it and then failing to re-place it.
	fresh, err := NewOrder(existing.User, existing.Market, existing.Side, price, amount, existing.Signature)
	if err != nil {
		return nil, err
	}

	if _, err := b.Cancel(id); err != nil {
		return nil, err
	}
	return b.Place(fresh)
}

// GetOrder finds an order by id, whether resting or terminal.
func (b *OrderBook) GetOrder(id OrderID) (*Order, bool) {
	if entry, ok := b.index[id]; ok {
		ladder := b.ladder(entry.side)
		if level, ok := ladder.Get(&priceLevel{price: entry.price}); ok {
			for _, o := range level.orders {
				if o.ID == id {
					return o, true
				}
			}
		}
	}
	if o, ok := b.completed[id]; ok {
		return o, true
	}
	return nil, false
}

// TopOfBook returns the best bid and best ask, or nil for a side with no
// resting liquidity.
func (b *OrderBook) TopOfBook() (bestBid, bestAsk *decimal.Decimal) {
	if lvl, ok := b.bids.Min(); ok {
		p := lvl.price
		bestBid = &p
	}
	if lvl, ok := b.asks.Min(); ok {
		p := lvl.price
		bestAsk = &p
	}
	return
}

// Depth aggregates live quantity within each of the top n levels per side,
// best price first.
func (b *OrderBook) Depth(n int) (bids, asks []DepthLevel) {
	bids = collectDepth(b.bids, n)
	asks = collectDepth(b.asks, n)
	return
}

func collectDepth(ladder *priceLevels, n int) []DepthLevel {
	var out []DepthLevel
	ladder.Scan(func(lvl *priceLevel) bool {
		if len(out) >= n {
			return false
		}
		total := decimal.Zero
		for _, o := range lvl.orders {
			total = total.Add(o.Remaining)
		}
		out = append(out, DepthLevel{Price: lvl.price, Qty: total})
		return true
	})
	return out
}
