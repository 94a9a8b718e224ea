// Package storage is the bridge's access to the quote record store. Only
// the sync-owned columns (sync_status, excel_file_path, total_amount and
// the line items) are ever written here; the descriptive snapshot columns
// are read-only joins.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thomasldk/granite-erp-sub002/internal/sync/domain"
	"github.com/thomasldk/granite-erp-sub002/shared/postgresql"
)

type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

const quoteSelect = `
	SELECT
		q.id, q.reference, q.sync_status,
		COALESCE(q.excel_file_path, '') AS excel_file_path,
		COALESCE(q.total_amount, 0) AS total_amount,
		COALESCE(q.currency, '') AS currency,
		COALESCE(q.exchange_rate, 0) AS exchange_rate,
		COALESCE(q.incoterm, '') AS incoterm,
		COALESCE(q.incoterm_code, '') AS incoterm_code,
		COALESCE(q.incoterm_custom_text, '') AS incoterm_custom_text,
		COALESCE(q.payment_code, 0) AS payment_code,
		COALESCE(q.payment_days, 0) AS payment_days,
		COALESCE(q.payment_custom_text, '') AS payment_custom_text,
		COALESCE(q.deposit_percentage, 0) AS deposit_percentage,
		COALESCE(q.discount_percentage, 0) AS discount_percentage,
		COALESCE(q.discount_days, 0) AS discount_days,
		COALESCE(q.validity_days, 0) AS validity_days,
		COALESCE(q.date_issued, q.updated_at) AS date_issued,
		q.updated_at,
		COALESCE(tp.name, '') AS client_name,
		COALESCE(tp.city, '') AS client_city,
		COALESCE(tp.region, '') AS client_region,
		COALESCE(tp.address_line1, '') AS client_address,
		COALESCE(tp.postal_code, '') AS client_postal_code,
		COALESCE(tp.language, '') AS client_language,
		COALESCE(c.first_name, '') AS contact_first_name,
		COALESCE(c.last_name, '') AS contact_last_name,
		COALESCE(c.phone, '') AS contact_phone,
		COALESCE(c.mobile, '') AS contact_mobile,
		COALESCE(c.fax, '') AS contact_fax,
		COALESCE(c.email, '') AS contact_email,
		COALESCE(r.first_name, '') AS rep_first_name,
		COALESCE(r.last_name, '') AS rep_last_name,
		COALESCE(r.phone, '') AS rep_phone,
		COALESCE(r.mobile, '') AS rep_mobile,
		COALESCE(r.fax, '') AS rep_fax,
		COALESCE(r.email, '') AS rep_email,
		COALESCE(p.name, '') AS project_name,
		COALESCE(m.name, '') AS material_name,
		COALESCE(m.quality, '') AS material_quality,
		COALESCE(m.unit, '') AS material_unit,
		COALESCE(m.density, 0) AS material_density,
		COALESCE(m.purchase_price, 0) AS material_price,
		COALESCE(m.waste_pct, 0) AS material_waste_pct
	FROM quotes q
	LEFT JOIN third_parties tp ON tp.id = q.third_party_id
	LEFT JOIN contacts c ON c.id = q.contact_id
	LEFT JOIN representatives r ON r.id = q.representative_id
	LEFT JOIN projects p ON p.id = q.project_id
	LEFT JOIN materials m ON m.id = q.material_id
`

const itemColumns = `
	id, quote_id, tag, material, description, quantity, unit,
	length, width, thickness,
	net_length, net_area, net_volume, total_weight,
	unit_price, total_price, unit_price_cad, total_price_cad,
	stone_value, primary_sawing_cost, secondary_sawing_cost,
	profiling_cost, finishing_cost, anchoring_cost,
	unit_time, total_time
`

// FindOldestPending selects the single oldest-updated quote in one of the
// four pending states. FIFO by updated_at; job types are not prioritized.
func (s *Storage) FindOldestPending(ctx context.Context) (*domain.Quote, error) {
	query := quoteSelect + `
		WHERE q.sync_status IN ($1, $2, $3, $4)
		ORDER BY q.updated_at ASC
		LIMIT 1
	`

	var quote domain.Quote
	err := s.db.GetContext(ctx, &quote, query,
		domain.StatusPendingAgent,
		domain.StatusPendingReimport,
		domain.StatusPendingDuplicate,
		domain.StatusPendingRevision,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoPendingJob
		}
		return nil, fmt.Errorf("failed to select pending quote: %w", err)
	}

	if err := s.loadItems(ctx, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*domain.Quote, error) {
	var quote domain.Quote
	err := s.db.GetContext(ctx, &quote, quoteSelect+` WHERE q.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQuoteNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	if err := s.loadItems(ctx, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *Storage) GetByReference(ctx context.Context, reference string) (*domain.Quote, error) {
	var quote domain.Quote
	err := s.db.GetContext(ctx, &quote, quoteSelect+` WHERE q.reference = $1`, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQuoteNotFound
		}
		return nil, fmt.Errorf("failed to get quote by reference: %w", err)
	}
	if err := s.loadItems(ctx, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *Storage) loadItems(ctx context.Context, quote *domain.Quote) error {
	query := `SELECT ` + itemColumns + ` FROM quote_items WHERE quote_id = $1 ORDER BY tag, id`
	if err := s.db.SelectContext(ctx, &quote.Items, query, quote.ID); err != nil {
		return fmt.Errorf("failed to load quote items: %w", err)
	}
	return nil
}

// MarkClaimed flips a pending quote to AGENT_PICKED. The write is guarded
// by the expected current status so an overlapping poll that lost the race
// gets ErrAlreadyClaimed instead of silently double-claiming.
func (s *Storage) MarkClaimed(ctx context.Context, id string, from domain.Status) error {
	if !domain.CanTransition(from, domain.StatusAgentPicked) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, domain.StatusAgentPicked)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE quotes
		SET sync_status = $1, updated_at = NOW()
		WHERE id = $2 AND sync_status = $3
	`, domain.StatusAgentPicked, id, from)
	if err != nil {
		return fmt.Errorf("failed to claim quote: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrAlreadyClaimed
	}

	s.logger.Info("Quote claimed",
		slog.String("quote_id", id),
		slog.String("from", string(from)),
	)
	return nil
}

// SetStatus writes a sync status without a current-state guard. Used on
// error paths where the quote may have moved (or vanished) concurrently;
// a missing quote is reported as ErrQuoteNotFound for the caller to log.
func (s *Storage) SetStatus(ctx context.Context, id string, status domain.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE quotes SET sync_status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrQuoteNotFound
	}
	return nil
}

// SetExcelFilePath records the last known artifact location for a quote.
func (s *Storage) SetExcelFilePath(ctx context.Context, id, path string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE quotes SET excel_file_path = $1, updated_at = NOW() WHERE id = $2
	`, path, id)
	if err != nil {
		return fmt.Errorf("failed to set excel file path: %w", err)
	}
	return nil
}

// DeleteQuote removes a quote and its line items, items first so a missing
// cascade in the schema cannot leave orphans.
func (s *Storage) DeleteQuote(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete quote items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM quotes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete quote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	s.logger.Info("Quote deleted", slog.String("quote_id", id))
	return nil
}

// CloneForRevision copies a quote row and its items under a new reference
// with status PENDING_REVISION. The clone carries the full commercial
// snapshot; the Executor recomputes the rest.
func (s *Storage) CloneForRevision(ctx context.Context, sourceID, newReference string) (*domain.Quote, error) {
	newID := uuid.New().String()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO quotes (
			id, reference, sync_status, excel_file_path, total_amount,
			third_party_id, contact_id, representative_id, project_id, material_id,
			currency, exchange_rate, incoterm, incoterm_code, incoterm_custom_text,
			payment_code, payment_days, payment_custom_text,
			deposit_percentage, discount_percentage, discount_days, validity_days,
			date_issued, created_at, updated_at
		)
		SELECT
			$1, $2, $3, NULL, 0,
			third_party_id, contact_id, representative_id, project_id, material_id,
			currency, exchange_rate, incoterm, incoterm_code, incoterm_custom_text,
			payment_code, payment_days, payment_custom_text,
			deposit_percentage, discount_percentage, discount_days, validity_days,
			NOW(), NOW(), NOW()
		FROM quotes WHERE id = $4
	`, newID, newReference, domain.StatusPendingRevision, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to clone quote: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, domain.ErrQuoteNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quote_items (`+itemColumns+`)
		SELECT
			gen_random_uuid(), $1, tag, material, description, quantity, unit,
			length, width, thickness,
			net_length, net_area, net_volume, total_weight,
			unit_price, total_price, unit_price_cad, total_price_cad,
			stone_value, primary_sawing_cost, secondary_sawing_cost,
			profiling_cost, finishing_cost, anchoring_cost,
			unit_time, total_time
		FROM quote_items WHERE quote_id = $2
	`, newID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to clone quote items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit clone: %w", err)
	}

	return s.GetByID(ctx, newID)
}

// ReplaceItems is the ingestion transaction: delete every existing item,
// bulk-insert the decoded set, then write the recomputed total and the
// terminal success status. No partial merge, by contract.
func (s *Storage) ReplaceItems(ctx context.Context, quoteID string, items []domain.QuoteItem, total float64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, quoteID); err != nil {
		return fmt.Errorf("failed to clear quote items: %w", err)
	}

	insert := `
		INSERT INTO quote_items (` + itemColumns + `) VALUES (
			:id, :quote_id, :tag, :material, :description, :quantity, :unit,
			:length, :width, :thickness,
			:net_length, :net_area, :net_volume, :total_weight,
			:unit_price, :total_price, :unit_price_cad, :total_price_cad,
			:stone_value, :primary_sawing_cost, :secondary_sawing_cost,
			:profiling_cost, :finishing_cost, :anchoring_cost,
			:unit_time, :total_time
		)
	`
	for i := range items {
		items[i].ID = uuid.New().String()
		items[i].QuoteID = quoteID
		if _, err := tx.NamedExecContext(ctx, insert, items[i]); err != nil {
			return fmt.Errorf("failed to insert quote item %q: %w", items[i].Tag, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE quotes
		SET total_amount = $1, sync_status = $2, updated_at = NOW()
		WHERE id = $3
	`, total, domain.StatusCalculated, quoteID)
	if err != nil {
		return fmt.Errorf("failed to update quote total: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrQuoteNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ingestion: %w", err)
	}

	s.logger.Info("Quote items replaced",
		slog.String("quote_id", quoteID),
		slog.Int("item_count", len(items)),
		slog.Float64("total_amount", total),
	)
	return nil
}
