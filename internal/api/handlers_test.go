package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ome/internal/engine"
)

const testMarket = "0x010203000000000000000000000000000000000a"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(engine.NewState(), nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func createTestBook(t *testing.T, handler http.Handler) {
	t.Helper()
	rr := doJSON(t, handler, http.MethodPost, "/book", bookDescriptor{Market: testMarket})
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestCreateAndListBooks(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()

	createTestBook(t, h)

	rr := doJSON(t, h, http.MethodGet, "/book", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var markets []string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &markets))
	assert.Contains(t, markets, testMarket)
}

func TestCreateBook_DuplicateConflicts(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()

	createTestBook(t, h)
	rr := doJSON(t, h, http.MethodPost, "/book", bookDescriptor{Market: testMarket})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCreateOrder_RestsWhenBookEmpty(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	createTestBook(t, h)

	path := fmt.Sprintf("/book/%s/order", testMarket)
	rr := doJSON(t, h, http.MethodPost, path, orderSubmissionRequest{
		User:   "alice",
		Side:   "ASK",
		Price:  "100.00",
		Amount: "10",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "OPEN", resp.Status)
	assert.Equal(t, "10", resp.Remaining)
	assert.Empty(t, resp.Fills)
}

func TestCreateOrder_CrossesAndFills(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	createTestBook(t, h)

	path := fmt.Sprintf("/book/%s/order", testMarket)
	doJSON(t, h, http.MethodPost, path, orderSubmissionRequest{
		User: "alice", Side: "ASK", Price: "100.00", Amount: "10",
	})

	rr := doJSON(t, h, http.MethodPost, path, orderSubmissionRequest{
		User: "bob", Side: "BID", Price: "100.00", Amount: "10",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID, "a fully filled taker must still get an id")
	assert.Equal(t, "FILLED", resp.Status)
	assert.Equal(t, "0", resp.Remaining)
	require.Len(t, resp.Fills, 1)
	assert.Equal(t, "100", resp.Fills[0].Price)
}

func TestReadBook_ReportsTopOfBookAndDepth(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	createTestBook(t, h)

	orderPath := fmt.Sprintf("/book/%s/order", testMarket)
	doJSON(t, h, http.MethodPost, orderPath, orderSubmissionRequest{
		User: "alice", Side: "ASK", Price: "100.00", Amount: "10",
	})
	doJSON(t, h, http.MethodPost, orderPath, orderSubmissionRequest{
		User: "carol", Side: "BID", Price: "99.00", Amount: "5",
	})

	rr := doJSON(t, h, http.MethodGet, fmt.Sprintf("/book/%s", testMarket), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var book bookSnapshotResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &book))
	require.NotNil(t, book.BestAsk)
	require.NotNil(t, book.BestBid)
	assert.Equal(t, "100", *book.BestAsk)
	assert.Equal(t, "99", *book.BestBid)
	require.Len(t, book.Asks, 1)
	require.Len(t, book.Bids, 1)
}

func TestReadBook_UnknownMarketNotFound(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()

	rr := doJSON(t, h, http.MethodGet, fmt.Sprintf("/book/%s", testMarket), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOrderLifecycle_ReadUpdateCancel(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	createTestBook(t, h)

	orderPath := fmt.Sprintf("/book/%s/order", testMarket)
	rr := doJSON(t, h, http.MethodPost, orderPath, orderSubmissionRequest{
		User: "alice", Side: "ASK", Price: "100.00", Amount: "10",
	})
	var created orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	singlePath := fmt.Sprintf("/book/%s/order/%s", testMarket, created.ID)

	rr = doJSON(t, h, http.MethodGet, singlePath, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	newAmount := "7"
	rr = doJSON(t, h, http.MethodPut, singlePath, orderUpdateRequest{Amount: &newAmount})
	require.Equal(t, http.StatusOK, rr.Code)
	var updated orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "7", updated.Remaining)
	assert.NotEqual(t, created.ID, updated.ID, "update mints a fresh resting id")

	updatedPath := fmt.Sprintf("/book/%s/order/%s", testMarket, updated.ID)
	rr = doJSON(t, h, http.MethodDelete, updatedPath, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, h, http.MethodGet, updatedPath, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var cancelled orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cancelled))
	assert.Equal(t, "CANCELLED", cancelled.Status)
}

func TestCreateOrder_InvalidSideRejected(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	createTestBook(t, h)

	path := fmt.Sprintf("/book/%s/order", testMarket)
	rr := doJSON(t, h, http.MethodPost, path, orderSubmissionRequest{
		User: "alice", Side: "SIDEWAYS", Price: "100.00", Amount: "10",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMalformedMarketAddressRejectedAsBadRequest(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()

	rr := doJSON(t, h, http.MethodGet, "/book/not-hex", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/book", bookDescriptor{Market: "zz"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/book/not-hex/order", orderSubmissionRequest{
		User: "alice", Side: "ASK", Price: "100.00", Amount: "10",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCancelOrder_UnknownIDNotFound(t *testing.T) {
	s := newTestServer(t)
	h := s.Router()
	createTestBook(t, h)

	rr := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/book/%s/order/does-not-exist", testMarket), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
