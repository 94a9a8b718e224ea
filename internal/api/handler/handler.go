package handler

import (
	"context"
	"log/slog"

	"github.com/thomasldk/granite-erp-sub002/internal/sync/domain"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/dispatch"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/ingest"
)

// QuoteStore is the slice of the record store the HTTP layer needs.
type QuoteStore interface {
	GetByID(ctx context.Context, id string) (*domain.Quote, error)
	SetExcelFilePath(ctx context.Context, id, path string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Dispatcher *dispatch.Dispatcher
	Ingester   *ingest.Ingester
	Storage    QuoteStore
	UploadDir  string
}

// SyncHandler handles Executor-facing HTTP requests
type SyncHandler struct {
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	ingester   *ingest.Ingester
	storage    QuoteStore
	uploadDir  string
}

// NewSyncHandler creates a new SyncHandler instance
func NewSyncHandler(deps *Dependencies) *SyncHandler {
	return &SyncHandler{
		logger:     deps.Logger,
		dispatcher: deps.Dispatcher,
		ingester:   deps.Ingester,
		storage:    deps.Storage,
		uploadDir:  deps.UploadDir,
	}
}
