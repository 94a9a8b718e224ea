// Package events emits quote lifecycle notifications for the rest of the
// ERP. Publishing is best-effort: the sync pipeline never fails or blocks
// because the broker is down or absent.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/thomasldk/granite-erp-sub002/shared/rabbitmq"
)

const (
	RoutingKeyClaimed    = "quote.claimed"
	RoutingKeyCalculated = "quote.calculated"
	RoutingKeySyncError  = "quote.sync_error"
)

type QuoteEvent struct {
	QuoteID    string    `json:"quoteId"`
	Reference  string    `json:"reference"`
	JobType    string    `json:"jobType,omitempty"`
	ItemCount  int       `json:"itemCount,omitempty"`
	Total      float64   `json:"total,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher wraps the broker client. A nil client disables publishing,
// which is the normal mode for single-node deployments.
type Publisher struct {
	client *rabbitmq.Client
	logger *slog.Logger
}

func NewPublisher(client *rabbitmq.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

func (p *Publisher) QuoteClaimed(ctx context.Context, quoteID, reference, jobType string) {
	p.publish(ctx, RoutingKeyClaimed, QuoteEvent{
		QuoteID:    quoteID,
		Reference:  reference,
		JobType:    jobType,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Publisher) QuoteCalculated(ctx context.Context, quoteID, reference string, itemCount int, total float64) {
	p.publish(ctx, RoutingKeyCalculated, QuoteEvent{
		QuoteID:    quoteID,
		Reference:  reference,
		ItemCount:  itemCount,
		Total:      total,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Publisher) QuoteSyncError(ctx context.Context, quoteID, reference, cause string) {
	p.publish(ctx, RoutingKeySyncError, QuoteEvent{
		QuoteID:    quoteID,
		Reference:  reference,
		Error:      cause,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event QuoteEvent) {
	if p.client == nil {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal quote event",
			slog.Any("error", err),
			slog.String("routing_key", routingKey),
		)
		return
	}

	if err := p.client.PublishWithRetry(ctx, routingKey, body, "application/json"); err != nil {
		p.logger.Warn("Failed to publish quote event",
			slog.Any("error", err),
			slog.String("routing_key", routingKey),
			slog.String("quote_id", event.QuoteID),
		)
	}
}
