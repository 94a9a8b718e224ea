// Package revision resolves the C<n>R<m> revision chain of quote references
// and performs the compensating cleanup that makes a retried revision
// request idempotent.
package revision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/thomasldk/granite-erp-sub002/internal/sync/domain"
)

var refPattern = regexp.MustCompile(`C(\d+)R(\d+)$`)

// ResolvePredecessor computes the reference of the immediate predecessor
// revision. Returns false when the revision index is zero or the reference
// does not carry the C<n>R<m> suffix; callers then treat the quote as
// having no prior artifact.
func ResolvePredecessor(reference string) (string, bool) {
	m := refPattern.FindStringSubmatchIndex(reference)
	if m == nil {
		return "", false
	}
	rev, err := strconv.Atoi(reference[m[4]:m[5]])
	if err != nil || rev == 0 {
		return "", false
	}
	return reference[:m[4]] + strconv.Itoa(rev-1), true
}

// NextRevision computes the reference of the next revision. References
// without the standard suffix get an _R1 marker appended, matching the
// historical fallback.
func NextRevision(reference string) string {
	m := refPattern.FindStringSubmatchIndex(reference)
	if m == nil {
		return reference + "_R1"
	}
	rev, err := strconv.Atoi(reference[m[4]:m[5]])
	if err != nil {
		return reference + "_R1"
	}
	return reference[:m[4]] + strconv.Itoa(rev+1)
}

// QuoteStore is the slice of the record store the resolver needs.
type QuoteStore interface {
	GetByReference(ctx context.Context, reference string) (*domain.Quote, error)
	DeleteQuote(ctx context.Context, id string) error
	CloneForRevision(ctx context.Context, sourceID, newReference string) (*domain.Quote, error)
}

// Resolver walks revision chains against the record store. Stateless; one
// instance serves all requests.
type Resolver struct {
	store  QuoteStore
	logger *slog.Logger
}

func NewResolver(store QuoteStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// PredecessorSnapshot loads the predecessor quote of reference, if both the
// predecessor reference and its record still exist. The snapshot is needed
// because the material (hence the old artifact's filename) may differ from
// the current quote's.
func (r *Resolver) PredecessorSnapshot(ctx context.Context, reference string) (*domain.Quote, bool, error) {
	predRef, ok := ResolvePredecessor(reference)
	if !ok {
		return nil, false, nil
	}

	prev, err := r.store.GetByReference(ctx, predRef)
	if err != nil {
		if errors.Is(err, domain.ErrQuoteNotFound) {
			r.logger.Warn("Predecessor quote no longer exists",
				slog.String("reference", reference),
				slog.String("predecessor", predRef),
			)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load predecessor %s: %w", predRef, err)
	}

	return prev, true, nil
}

// CompensateCollision deletes a quote already holding targetReference, items
// first, so a retried revision behaves as if the earlier partial attempt
// never ran. This is a compensating delete, not a distributed transaction:
// a failure between the delete and the subsequent recreate leaves neither
// quote, which the operator resolves by retrying.
func (r *Resolver) CompensateCollision(ctx context.Context, targetReference string) error {
	stale, err := r.store.GetByReference(ctx, targetReference)
	if err != nil {
		if errors.Is(err, domain.ErrQuoteNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check target reference %s: %w", targetReference, err)
	}

	r.logger.Warn("Revision target already exists, clearing stale quote for retry",
		slog.String("reference", targetReference),
		slog.String("quote_id", stale.ID),
	)

	if err := r.store.DeleteQuote(ctx, stale.ID); err != nil {
		return fmt.Errorf("%w: compensating delete of %s failed: %v",
			domain.ErrReferenceCollision, targetReference, err)
	}

	return nil
}

// CreateRevision makes the next revision of the quote holding reference:
// compute the target reference, clear any stale quote left by a prior
// partial attempt, then clone the source quote and its items under the new
// reference with status PENDING_REVISION.
func (r *Resolver) CreateRevision(ctx context.Context, reference string) (*domain.Quote, error) {
	source, err := r.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to load source quote %s: %w", reference, err)
	}

	newRef := NextRevision(source.Reference)

	if err := r.CompensateCollision(ctx, newRef); err != nil {
		return nil, err
	}

	rev, err := r.store.CloneForRevision(ctx, source.ID, newRef)
	if err != nil {
		return nil, fmt.Errorf("failed to create revision %s: %w", newRef, err)
	}

	r.logger.Info("Revision created",
		slog.String("source", source.Reference),
		slog.String("revision", rev.Reference),
	)

	return rev, nil
}
