package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"ome/internal/common"
	"ome/internal/engine"
	"ome/internal/executioner"
)

// Server wires the engine state and the executioner client into an
// http.Handler implementing spec.md §6's route table.
type Server struct {
	state *engine.State
	exec  *executioner.Client
}

// NewServer constructs a Server. A nil exec disables executioner
// submission: fills are still matched locally but are not forwarded.
func NewServer(state *engine.State, exec *executioner.Client) *Server {
	return &Server{state: state, exec: exec}
}

// Router returns the CORS-wrapped gorilla/mux router for this server.
func (s *Server) Router() http.Handler {
	return newRouter(s)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}

func pathMarket(r *http.Request) (common.Address, error) {
	return common.ParseAddress(mux.Vars(r)["market"])
}

func pathOrderID(r *http.Request) engine.OrderID {
	return engine.OrderID(mux.Vars(r)["id"])
}

// listBooks handles GET /book.
func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	markets := s.state.ListBooks()
	out := make([]string, 0, len(markets))
	for _, m := range markets {
		out = append(out, m.String())
	}
	writeJSON(w, http.StatusOK, out)
}

// createBook handles POST /book.
func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var body bookDescriptor
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, engine.ErrInvalidOrder)
		return
	}
	market, err := common.ParseAddress(body.Market)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.state.AddBook(market); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookDescriptor{Market: market.String()})
}

// readBook handles GET /book/{market}.
func (s *Server) readBook(w http.ResponseWriter, r *http.Request) {
	market, err := pathMarket(r)
	if err != nil {
		writeError(w, err)
		return
	}
	bestBid, bestAsk, err := s.state.TopOfBook(market)
	if err != nil {
		writeError(w, err)
		return
	}
	bids, asks, err := s.state.Depth(market, defaultDepth)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookSnapshotResponse{
		Market:  market.String(),
		BestBid: decimalPtrToStringPtr(bestBid),
		BestAsk: decimalPtrToStringPtr(bestAsk),
		Bids:    toDepthLevels(bids),
		Asks:    toDepthLevels(asks),
	})
}

const defaultDepth = 50

func decimalPtrToStringPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func toDepthLevels(levels []engine.DepthLevel) []depthLevel {
	out := make([]depthLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, depthLevel{Price: l.Price.String(), Qty: l.Qty.String()})
	}
	return out
}

// createOrder handles POST /book/{market}/order.
func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	market, err := pathMarket(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var body orderSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, engine.ErrInvalidOrder)
		return
	}

	var side engine.Side
	switch body.Side {
	case "BID":
		side = engine.Bid
	case "ASK":
		side = engine.Ask
	default:
		writeError(w, engine.ErrInvalidOrder)
		return
	}

	price, err := decimal.NewFromString(body.Price)
	if err != nil {
		writeError(w, engine.ErrInvalidOrder)
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		writeError(w, engine.ErrInvalidOrder)
		return
	}
	signature, err := hex.DecodeString(body.Signature)
	if err != nil {
		writeError(w, engine.ErrInvalidOrder)
		return
	}

	order, err := engine.NewOrder(body.User, market, side, price, amount, signature)
	if err != nil {
		writeError(w, err)
		return
	}

	outcome, err := s.state.PlaceOrder(market, order)
	if err != nil {
		writeError(w, err)
		return
	}

	// The lock is already released at this point (State.PlaceOrder scopes
	// it to the match itself) — submissions to the executioner happen
	// outside any critical section, per spec.md §5.
	warnings := s.submitFills(market, outcome.Fills, signature)

	result := order
	result.Remaining = order.Amount
	for _, f := range outcome.Fills {
		result.Remaining = result.Remaining.Sub(f.Qty)
	}
	switch {
	case outcome.Resting != nil:
		result.ID = *outcome.Resting
		if len(outcome.Fills) > 0 {
			result.Status = engine.Partial
		} else {
			result.Status = engine.Open
		}
	case len(outcome.Fills) > 0:
		result.ID = outcome.Fills[0].TakerID
		result.Status = engine.Filled
		result.Remaining = decimal.Zero
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result, outcome.Fills, warnings))
}

// submitFills forwards each fill to the executioner outside the engine
// lock. Failures are logged and surfaced as response warnings; book state
// is never rolled back (spec.md §4.4).
func (s *Server) submitFills(market common.Address, fills []engine.Fill, takerSig []byte) []string {
	if s.exec == nil {
		return nil
	}
	var warnings []string
	for _, f := range fills {
		var makerSig []byte
		if maker, err := s.state.GetOrder(market, f.MakerID); err == nil {
			makerSig = maker.Signature
		}
		sub := executioner.SubmissionFromFill(f, makerSig, takerSig)
		if err := s.exec.Submit(sub); err != nil {
			log.Error().Err(err).
				Str("market", market.String()).
				Str("maker_id", string(f.MakerID)).
				Str("taker_id", string(f.TakerID)).
				Msg("executioner submission failed after retries")
			warnings = append(warnings, err.Error())
		}
	}
	return warnings
}

// readOrder handles GET /book/{market}/order/{id}.
func (s *Server) readOrder(w http.ResponseWriter, r *http.Request) {
	market, err := pathMarket(r)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := s.state.GetOrder(market, pathOrderID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order, nil, nil))
}

// updateOrder handles PUT /book/{market}/order/{id}.
func (s *Server) updateOrder(w http.ResponseWriter, r *http.Request) {
	market, err := pathMarket(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id := pathOrderID(r)

	var body orderUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, engine.ErrInvalidOrder)
		return
	}

	var newPrice, newAmount *decimal.Decimal
	if body.Price != nil {
		p, err := decimal.NewFromString(*body.Price)
		if err != nil {
			writeError(w, engine.ErrInvalidOrder)
			return
		}
		newPrice = &p
	}
	if body.Amount != nil {
		a, err := decimal.NewFromString(*body.Amount)
		if err != nil {
			writeError(w, engine.ErrInvalidOrder)
			return
		}
		newAmount = &a
	}

	existing, err := s.state.GetOrder(market, id)
	if err != nil {
		writeError(w, err)
		return
	}

	outcome, err := s.state.UpdateOrder(market, id, newPrice, newAmount)
	if err != nil {
		writeError(w, err)
		return
	}

	warnings := s.submitFills(market, outcome.Fills, existing.Signature)

	result := existing
	if newPrice != nil {
		result.Price = *newPrice
	}
	if newAmount != nil {
		result.Amount = *newAmount
	}
	result.Remaining = result.Amount
	for _, f := range outcome.Fills {
		result.Remaining = result.Remaining.Sub(f.Qty)
	}
	switch {
	case outcome.Resting != nil:
		result.ID = *outcome.Resting
		if len(outcome.Fills) > 0 {
			result.Status = engine.Partial
		} else {
			result.Status = engine.Open
		}
	case len(outcome.Fills) > 0:
		result.ID = outcome.Fills[0].TakerID
		result.Status = engine.Filled
		result.Remaining = decimal.Zero
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result, outcome.Fills, warnings))
}

// cancelOrder handles DELETE /book/{market}/order/{id}.
func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	market, err := pathMarket(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.state.CancelOrder(market, pathOrderID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
