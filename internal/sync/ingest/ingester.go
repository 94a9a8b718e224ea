// Package ingest commits uploaded result artifacts back into the record
// store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thomasldk/granite-erp-sub002/internal/events"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/codec"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/domain"
)

// QuoteStore is the slice of the record store the ingester needs.
type QuoteStore interface {
	GetByID(ctx context.Context, id string) (*domain.Quote, error)
	ReplaceItems(ctx context.Context, quoteID string, items []domain.QuoteItem, total float64) error
	SetStatus(ctx context.Context, id string, status domain.Status) error
}

// Summary reports what an accepted ingestion wrote.
type Summary struct {
	Reference string
	ItemCount int
	Total     float64
}

type Ingester struct {
	store     QuoteStore
	publisher *events.Publisher
	logger    *slog.Logger
}

func NewIngester(store QuoteStore, publisher *events.Publisher, logger *slog.Logger) *Ingester {
	return &Ingester{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Ingest decodes a result artifact and replaces the quote's line items
// with the decoded set in one transaction.
//
// Decoding happens before anything touches the store: a malformed upload
// returns an error with the quote's items and status untouched, so the
// Executor can retry the upload. Replaying the same artifact converges on
// the same final state.
func (i *Ingester) Ingest(ctx context.Context, quoteID string, artifact []byte) (*Summary, error) {
	quote, err := i.store.GetByID(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quote %s: %w", quoteID, err)
	}

	result, err := codec.Decode(artifact)
	if err != nil {
		i.logger.Error("Result artifact failed to decode",
			slog.String("quote_id", quoteID),
			slog.String("reference", quote.Reference),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("failed to decode result for %s: %w", quote.Reference, err)
	}

	var total float64
	for _, item := range result.Items {
		total += item.TotalPrice
	}

	if err := i.store.ReplaceItems(ctx, quoteID, result.Items, total); err != nil {
		// The transaction rolled back. Record the failure on the quote so
		// the pipeline does not silently stall; the quote may have been
		// deleted concurrently, in which case the status write is moot.
		if statusErr := i.store.SetStatus(ctx, quoteID, domain.StatusErrorAgent); statusErr != nil {
			i.logger.Error("Failed to record sync error status",
				slog.String("quote_id", quoteID),
				slog.Any("error", statusErr),
			)
		}
		i.publisher.QuoteSyncError(ctx, quoteID, quote.Reference, err.Error())
		return nil, &domain.TransactionError{Err: err}
	}

	i.logger.Info("Result ingested",
		slog.String("quote_id", quoteID),
		slog.String("reference", quote.Reference),
		slog.Int("item_count", len(result.Items)),
		slog.Float64("total", total),
	)

	i.publisher.QuoteCalculated(ctx, quoteID, quote.Reference, len(result.Items), total)

	return &Summary{
		Reference: quote.Reference,
		ItemCount: len(result.Items),
		Total:     total,
	}, nil
}
