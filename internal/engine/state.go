package engine

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"ome/internal/common"
)

// State owns the full set of order books. All mutations, and all reads
// that must see a consistent snapshot, serialize through a single
// exclusive lock (spec.md §5) — fine-grained per-book locking is
// intentionally avoided since cross-book operations do not exist.
type State struct {
	mu    sync.Mutex
	books map[common.Address]*OrderBook
}

// NewState returns an empty engine state.
func NewState() *State {
	return &State{books: make(map[common.Address]*OrderBook)}
}

// AddBook creates a new, empty book for market. Fails with ErrConflict if
// the market already has a book.
func (s *State) AddBook(market common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[market]; ok {
		return fmt.Errorf("%w: book %s already exists", ErrConflict, market)
	}
	s.books[market] = NewBook(market)
	return nil
}

// ListBooks enumerates the markets with a book.
func (s *State) ListBooks() []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets := make([]common.Address, 0, len(s.books))
	for market := range s.books {
		markets = append(markets, market)
	}
	return markets
}

// RemoveBook removes a book outright. Administrative only; not exposed on
// the HTTP surface by default.
func (s *State) RemoveBook(market common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[market]; !ok {
		return fmt.Errorf("%w: book %s", ErrNotFound, market)
	}
	delete(s.books, market)
	return nil
}

// TopOfBook reports the best bid/ask for market.
func (s *State) TopOfBook(market common.Address) (bestBid, bestAsk *decimal.Decimal, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[market]
	if !ok {
		return nil, nil, fmt.Errorf("%w: book %s", ErrNotFound, market)
	}
	bid, ask := book.TopOfBook()
	return bid, ask, nil
}

// Depth reports the top-n aggregated depth for market.
func (s *State) Depth(market common.Address, n int) (bids, asks []DepthLevel, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[market]
	if !ok {
		return nil, nil, fmt.Errorf("%w: book %s", ErrNotFound, market)
	}
	bids, asks = book.Depth(n)
	return bids, asks, nil
}

// GetOrder looks up an order by id within market.
func (s *State) GetOrder(market common.Address, id OrderID) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[market]
	if !ok {
		return Order{}, fmt.Errorf("%w: book %s", ErrNotFound, market)
	}
	order, ok := book.GetOrder(id)
	if !ok {
		return Order{}, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	return *order, nil
}

// PlaceOrder matches and, if any quantity remains, rests order against
// market's book. The returned fills have NOT yet been submitted to the
// executioner — per spec.md §5, that call must happen after this method
// returns and the lock has been released.
func (s *State) PlaceOrder(market common.Address, order Order) (*PlacementOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[market]
	if !ok {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, market)
	}
	return book.Place(order)
}

// CancelOrder cancels a resting order.
func (s *State) CancelOrder(market common.Address, id OrderID) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[market]
	if !ok {
		return Order{}, fmt.Errorf("%w: book %s", ErrNotFound, market)
	}
	cancelled, err := book.Cancel(id)
	if err != nil {
		return Order{}, err
	}
	return *cancelled, nil
}

// UpdateOrder replaces a resting order's price/amount, forfeiting its
// queue position. Returns the fills and/or resting id of the replacement
// order, exactly like PlaceOrder.
func (s *State) UpdateOrder(market common.Address, id OrderID, newPrice, newAmount *decimal.Decimal) (*PlacementOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[market]
	if !ok {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, market)
	}
	return book.Update(id, newPrice, newAmount)
}
