// Package submission is the client side of order taking: it classifies server
// responses, holds orders that could not be delivered and replays them when the
// order service is reachable again.
package submission

import (
	"errors"
	"fmt"
	"net/http"
)

type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeRetryable Outcome = "retryable"
	OutcomeRejected  Outcome = "rejected"
	// OutcomeQueued appears only on receipts; Classify never returns it.
	OutcomeQueued Outcome = "queued"
)

var ErrSyncInProgress = errors.New("submission: sync already in progress")

// Classify is the single decision point between retrying and surfacing a
// failure. err is the transport error when no response arrived.
func Classify(statusCode int, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeRetryable
	case statusCode >= 200 && statusCode < 300:
		return OutcomeSubmitted
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return OutcomeRetryable
	case statusCode >= 400 && statusCode < 500:
		return OutcomeRejected
	case statusCode >= 500 && statusCode < 600:
		return OutcomeRetryable
	default:
		return OutcomeRejected
	}
}

// RejectedError is a definitive refusal; resubmitting the same payload cannot
// succeed.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("order rejected (%d %s)", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("order rejected: %s", e.Message)
}
