package api

import "ome/internal/engine"

// orderSubmissionRequest is the POST /book/{market}/order body.
type orderSubmissionRequest struct {
	User      string `json:"user"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Amount    string `json:"amount"`
	Signature string `json:"signature"`
}

// orderUpdateRequest is the PUT /book/{market}/order/{id} body. Both
// fields are optional; an absent field keeps the order's current value.
type orderUpdateRequest struct {
	Price  *string `json:"price,omitempty"`
	Amount *string `json:"amount,omitempty"`
}

// bookDescriptor is the 201 response body for POST /book.
type bookDescriptor struct {
	Market string `json:"market"`
}

// depthLevel is one row of a book-snapshot depth response.
type depthLevel struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

// bookSnapshotResponse is the GET /book/{market} response body.
type bookSnapshotResponse struct {
	Market  string       `json:"market"`
	BestBid *string      `json:"best_bid"`
	BestAsk *string      `json:"best_ask"`
	Bids    []depthLevel `json:"bids"`
	Asks    []depthLevel `json:"asks"`
}

// fillResponse is one fill entry in an order placement response.
type fillResponse struct {
	MakerID   string `json:"maker_id"`
	TakerID   string `json:"taker_id"`
	MakerUser string `json:"maker_user"`
	TakerUser string `json:"taker_user"`
	Price     string `json:"price"`
	Qty       string `json:"qty"`
}

// orderResponse is the response body for order creation, lookup and
// replacement.
type orderResponse struct {
	ID        string         `json:"id"`
	User      string         `json:"user"`
	Market    string         `json:"market"`
	Side      string         `json:"side"`
	Price     string         `json:"price"`
	Amount    string         `json:"amount"`
	Remaining string         `json:"remaining"`
	Status    string         `json:"status"`
	Fills     []fillResponse `json:"fills,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

func toOrderResponse(o engine.Order, fills []engine.Fill, warnings []string) orderResponse {
	resp := orderResponse{
		ID:        string(o.ID),
		User:      o.User,
		Market:    o.Market.String(),
		Side:      o.Side.String(),
		Price:     o.Price.String(),
		Amount:    o.Amount.String(),
		Remaining: o.Remaining.String(),
		Status:    o.Status.String(),
		Warnings:  warnings,
	}
	for _, f := range fills {
		resp.Fills = append(resp.Fills, fillResponse{
			MakerID:   string(f.MakerID),
			TakerID:   string(f.TakerID),
			MakerUser: f.MakerUser,
			TakerUser: f.TakerUser,
			Price:     f.Price.String(),
			Qty:       f.Qty.String(),
		})
	}
	return resp
}
