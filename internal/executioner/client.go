// Package executioner implements the outbound settlement contract: after
// each matched fill, the engine submits the trade to the on-chain
// executioner service over HTTP, at-least-once, with bounded retry.
package executioner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"ome/internal/engine"
)

const (
	// submissionTimeout bounds the whole retry loop for a single fill,
	// independent of the HTTP request that triggered the match — per
	// spec.md §5 this must keep running even if the inbound request was
	// cancelled.
	submissionTimeout = 10 * time.Second
	maxAttempts       = 3
)

// Submission is the wire body posted to the executioner for one fill.
type Submission struct {
	Market       string `json:"market"`
	MakerID      string `json:"maker_id"`
	TakerID      string `json:"taker_id"`
	MakerUser    string `json:"maker_user"`
	TakerUser    string `json:"taker_user"`
	Price        string `json:"price"`
	Qty          string `json:"qty"`
	MakerSig     string `json:"maker_signature"`
	TakerSig     string `json:"taker_signature"`
	FillSequence uint64 `json:"fill_sequence"`
}

// Client submits matched fills to the executioner's HTTP endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client posting to baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Submit posts a fill's settlement instructions, retrying transient
// transport failures with bounded exponential backoff (3 attempts total,
// waiting 100ms and then 400ms between them). On persistent failure it returns
// engine.ErrExecutionerFailure; the caller's book state is never rolled
// back, since two resting orders having agreed on a price cannot be
// uncrossed without violating the book's never-crossed-at-rest invariant.
//
// Submit intentionally does not take the inbound request's context: a
// client disconnect must not abort a fill that two resting orders have
// already agreed on.
func (c *Client) Submit(sub Submission) error {
	ctx, cancel := context.WithTimeout(context.Background(), submissionTimeout)
	defer cancel()

	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("%w: encoding submission: %v", engine.ErrExecutionerFailure, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.Multiplier = 4
	policy.RandomizationFactor = 0
	bounded := backoff.WithMaxRetries(policy, maxAttempts-1)

	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Str("taker_id", sub.TakerID).Msg("executioner submission transport error, retrying")
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("executioner returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("executioner rejected submission: %d", resp.StatusCode))
		}
		return nil
	}

	if err := backoff.Retry(operation, bounded); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrExecutionerFailure, err)
	}
	return nil
}

// SubmissionFromFill builds the wire submission for a matched fill.
func SubmissionFromFill(f engine.Fill, makerSig, takerSig []byte) Submission {
	return Submission{
		Market:       f.Market.String(),
		MakerID:      string(f.MakerID),
		TakerID:      string(f.TakerID),
		MakerUser:    f.MakerUser,
		TakerUser:    f.TakerUser,
		Price:        f.Price.String(),
		Qty:          f.Qty.String(),
		MakerSig:     fmt.Sprintf("%x", makerSig),
		TakerSig:     fmt.Sprintf("%x", takerSig),
		FillSequence: f.Sequence,
	}
}
