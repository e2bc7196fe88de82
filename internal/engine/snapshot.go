package engine

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"ome/internal/common"
)

// snapshotDoc is the self-describing JSON shape of a full engine dump:
// {"books": {"<market-hex>": <book-json>, ...}}.
type snapshotDoc struct {
	Books map[string]bookDoc `json:"books"`
}

type bookDoc struct {
	Market string          `json:"market"`
	Seq    uint64          `json:"seq"`
	Bids   []priceLevelDoc `json:"bids"`
	Asks   []priceLevelDoc `json:"asks"`
}

type priceLevelDoc struct {
	Price  string     `json:"price"`
	Orders []orderDoc `json:"orders"`
}

type orderDoc struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Amount    string `json:"amount"`
	Remaining string `json:"remaining"`
	Status    string `json:"status"`
	CreatedAt uint64 `json:"created_at"`
	Signature string `json:"signature"`
}

func orderToDoc(o *Order) orderDoc {
	return orderDoc{
		ID:        string(o.ID),
		User:      o.User,
		Side:      o.Side.String(),
		Price:     o.Price.String(),
		Amount:    o.Amount.String(),
		Remaining: o.Remaining.String(),
		Status:    o.Status.String(),
		CreatedAt: o.CreatedAt,
		Signature: hex.EncodeToString(o.Signature),
	}
}

func orderFromDoc(market common.Address, d orderDoc) (*Order, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return nil, fmt.Errorf("order %s: bad price: %w", d.ID, err)
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, fmt.Errorf("order %s: bad amount: %w", d.ID, err)
	}
	remaining, err := decimal.NewFromString(d.Remaining)
	if err != nil {
		return nil, fmt.Errorf("order %s: bad remaining: %w", d.ID, err)
	}
	sig, err := hex.DecodeString(d.Signature)
	if err != nil {
		return nil, fmt.Errorf("order %s: bad signature: %w", d.ID, err)
	}

	var side Side
	switch d.Side {
	case "BID":
		side = Bid
	case "ASK":
		side = Ask
	default:
		return nil, fmt.Errorf("order %s: unknown side %q", d.ID, d.Side)
	}

	var status Status
	switch d.Status {
	case "OPEN":
		status = Open
	case "PARTIAL":
		status = Partial
	case "FILLED":
		status = Filled
	case "CANCELLED":
		status = Cancelled
	default:
		return nil, fmt.Errorf("order %s: unknown status %q", d.ID, d.Status)
	}

	return &Order{
		ID:        OrderID(d.ID),
		User:      d.User,
		Market:    market,
		Side:      side,
		Price:     price,
		Amount:    amount,
		Remaining: remaining,
		Status:    status,
		CreatedAt: d.CreatedAt,
		Signature: sig,
	}, nil
}

// toDoc converts a book into its JSON-stable representation. Level and
// order order is the book's natural iteration order, which is already
// deterministic (price-sorted ladders, FIFO within a level).
func (b *OrderBook) toDoc() bookDoc {
	doc := bookDoc{Market: b.Market.String(), Seq: b.seq}
	b.bids.Scan(func(lvl *priceLevel) bool {
		doc.Bids = append(doc.Bids, levelToDoc(lvl))
		return true
	})
	b.asks.Scan(func(lvl *priceLevel) bool {
		doc.Asks = append(doc.Asks, levelToDoc(lvl))
		return true
	})
	return doc
}

func levelToDoc(lvl *priceLevel) priceLevelDoc {
	d := priceLevelDoc{Price: lvl.price.String()}
	for _, o := range lvl.orders {
		d.Orders = append(d.Orders, orderToDoc(o))
	}
	return d
}

// bookFromDoc rebuilds an OrderBook from its JSON representation,
// including the index (derived, not persisted directly).
func bookFromDoc(d bookDoc) (*OrderBook, error) {
	market, err := common.ParseAddress(d.Market)
	if err != nil {
		return nil, err
	}
	book := NewBook(market)
	book.seq = d.Seq

	restore := func(ladder *priceLevels, docs []priceLevelDoc, side Side) error {
		for _, lvlDoc := range docs {
			price, err := decimal.NewFromString(lvlDoc.Price)
			if err != nil {
				return fmt.Errorf("book %s: bad level price: %w", d.Market, err)
			}
			level := &priceLevel{price: price}
			for _, od := range lvlDoc.Orders {
				order, err := orderFromDoc(market, od)
				if err != nil {
					return err
				}
				level.orders = append(level.orders, order)
				if order.IsTerminal() {
					book.completed[order.ID] = order
				} else {
					book.index[order.ID] = indexEntry{side: side, price: price}
				}
			}
			ladder.Set(level)
		}
		return nil
	}

	if err := restore(book.bids, d.Bids, Bid); err != nil {
		return nil, err
	}
	if err := restore(book.asks, d.Asks, Ask); err != nil {
		return nil, err
	}
	return book, nil
}

// SnapshotTo serializes the full engine state as a self-describing JSON
// object and writes it atomically: write-to-temp in the same directory,
// then rename over the destination. Only resting orders are written:
// terminal orders that a book keeps addressable by id are not included, so
// after RestoreFrom they no longer resolve.
func (s *State) SnapshotTo(path string) error {
	s.mu.Lock()
	doc := snapshotDoc{Books: make(map[string]bookDoc, len(s.books))}
	for market, book := range s.books {
		doc.Books[market.String()] = book.toDoc()
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotFailure, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".omedump-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotFailure, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrSnapshotFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotFailure, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotFailure, err)
	}
	return nil
}

// RestoreFrom deserializes a dump file written by SnapshotTo. If the file
// is absent or malformed, it logs a warning and returns a fresh, empty
// state: operator convenience trumps fail-closed here, and a corrupt dump
// file must never prevent startup.
func RestoreFrom(path string) *State {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("unable to read dump file, starting with empty state")
		}
		return NewState()
	}

	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("dump file is malformed, starting with empty state")
		return NewState()
	}

	state := NewState()
	for marketHex, raw := range doc.Books {
		book, err := bookFromDoc(raw)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Str("market", marketHex).Msg("dump file contains an unreadable book, dropping it")
			continue
		}
		state.books[book.Market] = book
	}
	return state
}
