package executioner

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ome/internal/common"
	"ome/internal/engine"
)

func testFill() engine.Fill {
	return engine.Fill{
		Market:    common.Address{9},
		MakerID:   engine.OrderID("maker-1"),
		TakerID:   engine.OrderID("taker-1"),
		MakerUser: "alice",
		TakerUser: "bob",
		Price:     decimal.RequireFromString("100.00"),
		Qty:       decimal.RequireFromString("5"),
		Sequence:  1,
	}
}

func TestSubmit_SucceedsOnFirstAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL)
	err := client.Submit(SubmissionFromFill(testFill(), nil, nil))
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSubmit_RetriesTransientFailureThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL)
	err := client.Submit(SubmissionFromFill(testFill(), nil, nil))
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "should succeed on the third and final attempt")
}

func TestSubmit_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL)
	err := client.Submit(SubmissionFromFill(testFill(), nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrExecutionerFailure)
	assert.EqualValues(t, maxAttempts, atomic.LoadInt32(&calls))
}

func TestSubmit_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := New(srv.URL)
	err := client.Submit(SubmissionFromFill(testFill(), nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrExecutionerFailure)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "a 4xx must not be retried")
}

func TestSubmissionFromFill_EncodesSignaturesAsHex(t *testing.T) {
	sub := SubmissionFromFill(testFill(), []byte{0xde, 0xad}, []byte{0xbe, 0xef})
	assert.Equal(t, "dead", sub.MakerSig)
	assert.Equal(t, "beef", sub.TakerSig)
	assert.Equal(t, "maker-1", sub.MakerID)
	assert.Equal(t, "taker-1", sub.TakerID)
}
