package scrape

import (
	"errors"
	"fmt"
)

// Fetch failure taxonomy. Timeouts, connection errors, bad statuses and parse
// failures are all retried the same way; the distinction matters for logging
// and for the cycle result message.
var (
	ErrTimeout           = errors.New("request timed out")
	ErrConnection        = errors.New("connection failed")
	ErrUnparsableBody    = errors.New("response body could not be parsed")
	ErrNoMatchingElement = errors.New("expected element not found in document")
)

// UnexpectedStatusError reports a non-200 response.
type UnexpectedStatusError struct {
	Code int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.Code)
}
