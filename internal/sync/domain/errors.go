package domain

import "errors"

var (
	// ErrQuoteNotFound is returned when a quote cannot be found in the database
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrNoPendingJob is returned by selection when no quote is waiting
	ErrNoPendingJob = errors.New("no pending job")

	// ErrReferenceCollision is returned when a revision target reference is
	// already taken and the compensating delete could not clear it
	ErrReferenceCollision = errors.New("reference collision")

	// ErrArtifactMissing is returned when an expected file is absent on the
	// shared filesystem; the attempted path is carried in the wrapping error
	ErrArtifactMissing = errors.New("artifact missing")

	// ErrDecodeFailed is returned when a result XML has no recognizable shape
	ErrDecodeFailed = errors.New("result decode failed")

	// ErrAlreadyClaimed is returned when the claim write finds the quote no
	// longer in its pending state
	ErrAlreadyClaimed = errors.New("quote already claimed or no longer pending")

	// ErrInvalidTransition is returned on a status write the state machine
	// does not allow
	ErrInvalidTransition = errors.New("invalid sync status transition")
)

// TransactionError wraps a failure inside the item-replacement transaction.
// The transaction is rolled back and the quote is pushed to ERROR_AGENT in a
// separate best-effort write.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return "ingestion transaction failed: " + e.Err.Error()
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
