package dispatch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasldk/granite-erp-sub002/internal/events"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/codec"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/domain"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/paths"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/revision"
)

// fakeStore is an in-memory quote store ordering pendings by insertion.
type fakeStore struct {
	quotes []*domain.Quote
}

func (s *fakeStore) FindOldestPending(context.Context) (*domain.Quote, error) {
	for _, q := range s.quotes {
		if q.SyncStatus.Pending() {
			copied := *q
			return &copied, nil
		}
	}
	return nil, domain.ErrNoPendingJob
}

func (s *fakeStore) MarkClaimed(_ context.Context, id string, from domain.Status) error {
	for _, q := range s.quotes {
		if q.ID == id {
			if q.SyncStatus != from {
				return domain.ErrAlreadyClaimed
			}
			q.SyncStatus = domain.StatusAgentPicked
			return nil
		}
	}
	return domain.ErrQuoteNotFound
}

func (s *fakeStore) GetByReference(_ context.Context, ref string) (*domain.Quote, error) {
	for _, q := range s.quotes {
		if q.Reference == ref {
			copied := *q
			return &copied, nil
		}
	}
	return nil, domain.ErrQuoteNotFound
}

func (s *fakeStore) SetStatus(_ context.Context, id string, status domain.Status) error {
	for _, q := range s.quotes {
		if q.ID == id {
			q.SyncStatus = status
			return nil
		}
	}
	return domain.ErrQuoteNotFound
}

// revisionStore adapts fakeStore to the revision resolver's interface.
type revisionStore struct{ *fakeStore }

func (s revisionStore) DeleteQuote(context.Context, string) error { return nil }

func (s revisionStore) CloneForRevision(context.Context, string, string) (*domain.Quote, error) {
	return nil, domain.ErrQuoteNotFound
}

func newTestDispatcher(t *testing.T, store *fakeStore) *Dispatcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := paths.NewResolver(`F:\nxerp`)
	return NewDispatcher(
		store,
		codec.NewEncoder(codec.EncoderConfig{Paths: resolver}),
		resolver,
		revision.NewResolver(revisionStore{store}, logger),
		events.NewPublisher(nil, logger),
		t.TempDir(),
		logger,
	)
}

func TestDispatcher_ClaimNextJob_ClaimsExactlyOnce(t *testing.T) {
	store := &fakeStore{quotes: []*domain.Quote{
		{
			ID:         "11111111-1111-1111-1111-111111111111",
			Reference:  "DRC25-0001-C0R0",
			SyncStatus: domain.StatusPendingAgent,
			ClientName: "Ashford Co", ProjectName: "Tower West", MaterialName: "Gris Nordique",
		},
	}}
	d := newTestDispatcher(t, store)

	job, found, err := d.ClaimNextJob(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.JobTypeCreate, job.JobType)
	assert.Equal(t, "DRC25-0001-C0R0", job.Reference)
	assert.Equal(t, "DRC25-0001-C0R0_Ashford_Co_Tower_West_Gris_Nordique.rak", job.TargetFilename)
	assert.Contains(t, job.XMLPayload, "action='emcot'")
	assert.Equal(t, domain.StatusAgentPicked, store.quotes[0].SyncStatus)

	// The immediately following poll must not serve the same quote again.
	_, found, err = d.ClaimNextJob(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDispatcher_ClaimNextJob_NoWork(t *testing.T) {
	d := newTestDispatcher(t, &fakeStore{})

	job, found, err := d.ClaimNextJob(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, job)
}

func TestDispatcher_ClaimNextJob_FIFO(t *testing.T) {
	store := &fakeStore{quotes: []*domain.Quote{
		{ID: "a", Reference: "DRC25-0001-C0R0", SyncStatus: domain.StatusPendingReimport, ExcelFilePath: "uploads/a__f.xlsx"},
		{ID: "b", Reference: "DRC25-0002-C0R0", SyncStatus: domain.StatusPendingAgent},
	}}
	d := newTestDispatcher(t, store)

	var served []string
	for {
		job, found, err := d.ClaimNextJob(context.Background())
		require.NoError(t, err)
		if !found {
			break
		}
		served = append(served, job.Reference)
	}

	// Oldest first, reimport gets no priority over creation.
	assert.Equal(t, []string{"DRC25-0001-C0R0", "DRC25-0002-C0R0"}, served)
	assert.True(t, sort.StringsAreSorted(served))
}

func TestDispatcher_DuplicateJob(t *testing.T) {
	store := &fakeStore{quotes: []*domain.Quote{
		{ID: "d1", Reference: "DRC25-0003-C1R0", SyncStatus: domain.StatusPendingDuplicate},
	}}
	d := newTestDispatcher(t, store)

	t.Run("re-serves the persisted artifact", func(t *testing.T) {
		payload := "<generation type='Soumission'><meta action='recopier'/></generation>"
		path := filepath.Join(d.pendingDir, "DRC25-0003-C1R0.rak")
		require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

		job, found, err := d.ClaimNextJob(context.Background())
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, domain.JobTypeDuplicate, job.JobType)
		assert.Equal(t, payload, job.XMLPayload)
		assert.Equal(t, "DRC25-0003-C1R0.rak", job.TargetFilename)
	})

	t.Run("missing artifact becomes an error payload", func(t *testing.T) {
		store.quotes[0].SyncStatus = domain.StatusPendingDuplicate
		require.NoError(t, os.Remove(filepath.Join(d.pendingDir, "DRC25-0003-C1R0.rak")))

		job, found, err := d.ClaimNextJob(context.Background())
		require.NoError(t, err)
		require.True(t, found)
		assert.Contains(t, job.XMLPayload, "action='erreur'")
		assert.Contains(t, job.XMLPayload, "reference='DRC25-0003-C1R0'")
	})
}

func TestDispatcher_ReimportJob(t *testing.T) {
	t.Run("preserved original name wins", func(t *testing.T) {
		store := &fakeStore{quotes: []*domain.Quote{
			{
				ID: "r1", Reference: "DRC25-0004-C0R0",
				SyncStatus:    domain.StatusPendingReimport,
				ProjectName:   "Tower West",
				ExcelFilePath: "uploads/r1___Soumission originale.xlsx",
			},
		}}
		d := newTestDispatcher(t, store)

		job, found, err := d.ClaimNextJob(context.Background())
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, domain.JobTypeReimport, job.JobType)
		assert.Contains(t, job.XMLPayload, "action='reintegrer'")
		assert.Equal(t, `F:\nxerp\Tower West\Soumission originale.xlsx`, job.FileParams["targetPath"])
	})

	t.Run("canonical name when nothing preserved", func(t *testing.T) {
		store := &fakeStore{quotes: []*domain.Quote{
			{
				ID: "r2", Reference: "DRC25-0005-C0R0",
				SyncStatus:    domain.StatusPendingReimport,
				ClientName:    "Ashford Co",
				ProjectName:   "Tower West",
				MaterialName:  "Gris Nordique",
				ExcelFilePath: "uploads/r2__result.xml",
			},
		}}
		d := newTestDispatcher(t, store)

		job, found, err := d.ClaimNextJob(context.Background())
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t,
			`F:\nxerp\Tower West\DRC25-0005-C0R0_Ashford_Co_Tower_West_Gris_Nordique.xlsx`,
			job.FileParams["targetPath"])
	})
}

func TestDispatcher_RevisionJob(t *testing.T) {
	t.Run("with predecessor snapshot", func(t *testing.T) {
		store := &fakeStore{quotes: []*domain.Quote{
			{
				ID: "v1", Reference: "DRC25-0006-C0R1",
				SyncStatus:   domain.StatusPendingRevision,
				ClientName:   "Ashford Co",
				ProjectName:  "Tower West",
				MaterialName: "Noir Cambrien",
			},
			{
				ID: "v0", Reference: "DRC25-0006-C0R0",
				SyncStatus:   domain.StatusCalculated,
				ClientName:   "Ashford Co",
				ProjectName:  "Tower West",
				MaterialName: "Gris Nordique",
			},
		}}
		d := newTestDispatcher(t, store)

		job, found, err := d.ClaimNextJob(context.Background())
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, domain.JobTypeRevise, job.JobType)
		assert.Contains(t, job.XMLPayload, "action='recot'")
		assert.Contains(t, job.XMLPayload, "ancienNom='DRC25-0006-C0R0'")
		assert.Contains(t, job.XMLPayload, "nouveauCouleur='Noir Cambrien'")

		// The source path carries the predecessor's own material.
		assert.Equal(t,
			`F:\nxerp\Tower West\DRC25-0006-C0R0_Ashford_Co_Tower_West_Gris_Nordique.xlsx`,
			job.FileParams["sourcePath"])
		assert.Equal(t,
			`F:\nxerp\Tower West\DRC25-0006-C0R1_Ashford_Co_Tower_West_Noir_Cambrien.xlsx`,
			job.FileParams["targetPath"])
	})

	t.Run("without predecessor falls back to creation", func(t *testing.T) {
		store := &fakeStore{quotes: []*domain.Quote{
			{
				ID: "v2", Reference: "DRC25-0007-C0R1",
				SyncStatus: domain.StatusPendingRevision,
			},
		}}
		d := newTestDispatcher(t, store)

		job, found, err := d.ClaimNextJob(context.Background())
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, domain.JobTypeRevise, job.JobType)
		assert.Contains(t, job.XMLPayload, "action='emcot'")
		assert.Empty(t, job.FileParams["sourcePath"])
	})
}

func TestDispatcher_PrepareDuplicate(t *testing.T) {
	store := &fakeStore{quotes: []*domain.Quote{
		{
			ID: "n1", Reference: "DRC25-0008-C1R0",
			SyncStatus:  domain.StatusDraft,
			ClientName:  "Ashford Co",
			ProjectName: "Tower East",
		},
		{
			ID: "s1", Reference: "DRC25-0008-C0R0",
			SyncStatus:  domain.StatusCalculated,
			ClientName:  "Ashford Co",
			ProjectName: "Tower West",
		},
	}}
	d := newTestDispatcher(t, store)

	err := d.PrepareDuplicate(context.Background(), store.quotes[0], "DRC25-0008-C0R0")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingDuplicate, store.quotes[0].SyncStatus)

	data, err := os.ReadFile(filepath.Join(d.pendingDir, "DRC25-0008-C1R0.rak"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "action='recopier'")
	assert.Contains(t, string(data), `Tower West`)
	assert.Contains(t, string(data), `Tower East`)

	// The prepared artifact is exactly what the next poll serves.
	job, found, err := d.ClaimNextJob(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, string(data), job.XMLPayload)
}

func TestDispatcher_PrepareDuplicate_MissingSource(t *testing.T) {
	store := &fakeStore{quotes: []*domain.Quote{
		{ID: "n2", Reference: "DRC25-0009-C1R0", SyncStatus: domain.StatusDraft},
	}}
	d := newTestDispatcher(t, store)

	err := d.PrepareDuplicate(context.Background(), store.quotes[0], "DRC25-9999-C0R0")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuoteNotFound)
	assert.Equal(t, domain.StatusDraft, store.quotes[0].SyncStatus)
}
