package signal

import (
	"errors"
	"fmt"
)

// Error taxonomy for scorer inputs and provider calls. Scorer-level errors
// never propagate out of a batch; provider errors are converted into backoff
// state by the worker.
var (
	// ErrMissingInput marks a malformed snapshot. The entity's recompute is
	// skipped and logged, the batch continues.
	ErrMissingInput = errors.New("snapshot missing required input")

	// ErrProviderTransient covers timeouts, 5xx and rate limits. Always
	// retried with backoff.
	ErrProviderTransient = errors.New("provider transient failure")

	// ErrProviderPermanent covers 4xx responses that indicate the query
	// itself is invalid. Still retried up to the attempt cap, but flagged
	// distinctly in the recorded failure reason.
	ErrProviderPermanent = errors.New("provider rejected query")

	// ErrProviderNoResult means the provider answered but found nothing.
	ErrProviderNoResult = errors.New("provider returned no result")
)

// MissingInput wraps ErrMissingInput with the field name.
func MissingInput(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingInput, field)
}
