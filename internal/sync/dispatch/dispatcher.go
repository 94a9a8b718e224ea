// Package dispatch selects the next pending quote, builds the job the
// Executor will run on its side, and claims the quote. One job descriptor
// per poll, never persisted.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/thomasldk/granite-erp-sub002/internal/events"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/codec"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/domain"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/paths"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/revision"
)

// QuoteStore is the slice of the record store the dispatcher needs.
type QuoteStore interface {
	FindOldestPending(ctx context.Context) (*domain.Quote, error)
	MarkClaimed(ctx context.Context, id string, from domain.Status) error
	GetByReference(ctx context.Context, reference string) (*domain.Quote, error)
	SetStatus(ctx context.Context, id string, status domain.Status) error
}

type Dispatcher struct {
	store      QuoteStore
	encoder    *codec.Encoder
	paths      *paths.Resolver
	revisions  *revision.Resolver
	publisher  *events.Publisher
	pendingDir string
	logger     *slog.Logger
}

func NewDispatcher(
	store QuoteStore,
	encoder *codec.Encoder,
	pathResolver *paths.Resolver,
	revisions *revision.Resolver,
	publisher *events.Publisher,
	pendingDir string,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:      store,
		encoder:    encoder,
		paths:      pathResolver,
		revisions:  revisions,
		publisher:  publisher,
		pendingDir: pendingDir,
		logger:     logger,
	}
}

// ClaimNextJob picks the oldest-updated pending quote, builds its job and
// flips the quote to AGENT_PICKED. found is false when nothing is pending.
//
// Selection and claim are two separate statements. With a single Executor
// polling there is no second claimant; if the claim does lose a race the
// poll reports no work and the quote is served on the next cycle.
func (d *Dispatcher) ClaimNextJob(ctx context.Context) (*domain.JobDescriptor, bool, error) {
	quote, err := d.store.FindOldestPending(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoPendingJob) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to select pending quote: %w", err)
	}

	jobType, ok := quote.SyncStatus.JobType()
	if !ok {
		return nil, false, fmt.Errorf("%w: status %s has no job type",
			domain.ErrInvalidTransition, quote.SyncStatus)
	}

	job := &domain.JobDescriptor{
		QuoteID:    quote.ID,
		Reference:  quote.Reference,
		JobType:    jobType,
		FileParams: map[string]string{},
	}

	switch jobType {
	case domain.JobTypeCreate:
		d.buildCreateJob(job, quote)
	case domain.JobTypeDuplicate:
		d.buildDuplicateJob(job, quote)
	case domain.JobTypeReimport:
		d.buildReimportJob(job, quote)
	case domain.JobTypeRevise:
		if err := d.buildRevisionJob(ctx, job, quote); err != nil {
			return nil, false, err
		}
	}

	if err := d.store.MarkClaimed(ctx, quote.ID, quote.SyncStatus); err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			d.logger.Warn("Quote claimed by a concurrent poll, skipping",
				slog.String("quote_id", quote.ID),
				slog.String("reference", quote.Reference),
			)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to claim quote %s: %w", quote.ID, err)
	}

	d.logger.Info("Job dispatched",
		slog.String("quote_id", quote.ID),
		slog.String("reference", quote.Reference),
		slog.String("job_type", string(jobType)),
		slog.String("target_filename", job.TargetFilename),
	)

	d.publisher.QuoteClaimed(ctx, quote.ID, quote.Reference, string(jobType))

	return job, true, nil
}

func (d *Dispatcher) buildCreateJob(job *domain.JobDescriptor, quote *domain.Quote) {
	job.XMLPayload = d.encoder.EncodeQuote(quote)
	job.TargetFilename = paths.CanonicalFilename(
		quote.Reference, quote.ClientName, quote.ProjectName, quote.MaterialName, ".rak")
}

// buildDuplicateJob re-serves the job XML written when the duplicate was
// requested. A missing artifact becomes an explicit error payload; the
// Executor gets a document every poll, never a failed request.
func (d *Dispatcher) buildDuplicateJob(job *domain.JobDescriptor, quote *domain.Quote) {
	name := paths.Sanitize(quote.Reference) + ".rak"
	artifactPath := filepath.Join(d.pendingDir, name)

	data, err := os.ReadFile(artifactPath)
	if err != nil {
		d.logger.Error("Pending duplicate artifact missing",
			slog.String("reference", quote.Reference),
			slog.String("path", artifactPath),
			slog.Any("error", fmt.Errorf("%w: %v", domain.ErrArtifactMissing, err)),
		)
		job.XMLPayload = d.encoder.EncodeMissingArtifact(quote.Reference, artifactPath)
	} else {
		job.XMLPayload = string(data)
	}
	job.TargetFilename = name
}

func (d *Dispatcher) buildReimportJob(job *domain.JobDescriptor, quote *domain.Quote) {
	filename, preserved := paths.PreservedOriginalName(quote.ExcelFilePath)
	if !preserved {
		filename = paths.CanonicalFilename(
			quote.Reference, quote.ClientName, quote.ProjectName, quote.MaterialName, ".xlsx")
	}

	targetPath := d.paths.CanonicalPath(quote.ProjectName, filename)
	job.XMLPayload = d.encoder.EncodeReintegration(targetPath, quote.ID)
	job.TargetFilename = paths.Sanitize(quote.Reference) + ".rak"
	job.FileParams["targetPath"] = targetPath
}

// buildRevisionJob derives the source artifact path from the predecessor's
// own snapshot; its material, hence its filename, may differ from the
// revised quote's. Without a usable predecessor the quote is emitted as a
// plain creation job.
func (d *Dispatcher) buildRevisionJob(ctx context.Context, job *domain.JobDescriptor, quote *domain.Quote) error {
	prev, ok, err := d.revisions.PredecessorSnapshot(ctx, quote.Reference)
	if err != nil {
		return fmt.Errorf("failed to resolve revision lineage for %s: %w", quote.Reference, err)
	}
	if !ok {
		d.logger.Warn("Revision without predecessor, dispatching as creation",
			slog.String("reference", quote.Reference),
		)
		d.buildCreateJob(job, quote)
		return nil
	}

	sourcePath := d.paths.CanonicalPath(prev.ProjectName, paths.CanonicalFilename(
		prev.Reference, prev.ClientName, prev.ProjectName, prev.MaterialName, ".xlsx"))
	targetPath := d.paths.CanonicalPath(quote.ProjectName, paths.CanonicalFilename(
		quote.Reference, quote.ClientName, quote.ProjectName, quote.MaterialName, ".xlsx"))

	job.XMLPayload = d.encoder.EncodeRevision(quote, codec.RevisionContext{
		SourcePath:   sourcePath,
		TargetPath:   targetPath,
		OldReference: prev.Reference,
		NewReference: quote.Reference,
		OldMaterial:  prev.MaterialName,
		NewMaterial:  quote.MaterialName,
		OldQuality:   prev.MaterialQuality,
		NewQuality:   quote.MaterialQuality,
	})
	job.TargetFilename = paths.Sanitize(quote.Reference) + ".rak"
	job.FileParams["sourcePath"] = sourcePath
	job.FileParams["targetPath"] = targetPath
	return nil
}

// PrepareDuplicate writes the duplicate job XML for a quote into the
// pending directory and marks the quote PENDING_DUPLICATE. The dispatcher
// re-serves that file on the Executor's next poll.
func (d *Dispatcher) PrepareDuplicate(ctx context.Context, quote *domain.Quote, sourceReference string) error {
	source, err := d.store.GetByReference(ctx, sourceReference)
	if err != nil {
		return fmt.Errorf("failed to load duplicate source %s: %w", sourceReference, err)
	}

	sourcePath := d.paths.CanonicalPath(source.ProjectName, paths.CanonicalFilename(
		source.Reference, source.ClientName, source.ProjectName, source.MaterialName, ".xlsx"))
	targetPath := d.paths.CanonicalPath(quote.ProjectName, paths.CanonicalFilename(
		quote.Reference, quote.ClientName, quote.ProjectName, quote.MaterialName, ".xlsx"))

	payload := d.encoder.EncodeDuplicate(quote, sourcePath, targetPath)

	if err := os.MkdirAll(d.pendingDir, 0o755); err != nil {
		return fmt.Errorf("failed to create pending directory: %w", err)
	}

	artifactPath := filepath.Join(d.pendingDir, paths.Sanitize(quote.Reference)+".rak")
	if err := os.WriteFile(artifactPath, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("failed to write pending duplicate artifact: %w", err)
	}

	if err := d.store.SetStatus(ctx, quote.ID, domain.StatusPendingDuplicate); err != nil {
		return fmt.Errorf("failed to mark quote pending duplicate: %w", err)
	}

	d.logger.Info("Duplicate job prepared",
		slog.String("quote_id", quote.ID),
		slog.String("reference", quote.Reference),
		slog.String("source_reference", sourceReference),
		slog.String("artifact", artifactPath),
	)
	return nil
}
