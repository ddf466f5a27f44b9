// internal/repository/postgres/ledger_pg.go
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
)

const ledgerColumns = `id, user_id, amount, transfer_id, created_at`

// LedgerRepository implements repository.LedgerRepository for PostgreSQL.
// Entries are only ever inserted; there is no update or delete path.
type LedgerRepository struct{}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository() repository.LedgerRepository {
	return &LedgerRepository{}
}

// CreateEntry inserts a new ledger entry using the provided DBExecutor.
func (r *LedgerRepository) CreateEntry(ctx context.Context, q repository.DBExecutor, entry *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + ledgerColumns + `)
              VALUES ($1, $2, $3, $4, $5)`
	_, err := q.ExecContext(ctx, query, entry.ID, entry.UserID, entry.Amount, entry.TransferID, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry for user %s: %w", entry.UserID, TranslateError(err))
	}
	return nil
}

// ListEntriesByTransfer retrieves the entries written by a transfer, debit first.
func (r *LedgerRepository) ListEntriesByTransfer(ctx context.Context, q repository.DBExecutor, transferID uuid.UUID) ([]domain.LedgerEntry, error) {
	entries := []domain.LedgerEntry{}
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE transfer_id = $1 ORDER BY amount ASC`
	if err := q.SelectContext(ctx, &entries, query, transferID); err != nil {
		return nil, fmt.Errorf("failed to list entries for transfer %s: %w", transferID, TranslateError(err))
	}
	return entries, nil
}

// ListEntriesByUser retrieves a paginated list of a user's entries.
// It performs two queries: one for the data and one for the total count.
func (r *LedgerRepository) ListEntriesByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	entries := []domain.LedgerEntry{}

	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &entries, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch ledger entries for user %s: %w", userID, TranslateError(err))
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM ledger_entries WHERE user_id = $1`
	if err := q.GetContext(ctx, &totalCount, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to get total ledger entry count for user %s: %w", userID, TranslateError(err))
	}

	return entries, totalCount, nil
}

// ListAllEntriesByUser retrieves every entry of the user, oldest first.
func (r *LedgerRepository) ListAllEntriesByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) ([]domain.LedgerEntry, error) {
	entries := []domain.LedgerEntry{}
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE user_id = $1 ORDER BY created_at ASC, id ASC`
	if err := q.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list all ledger entries for user %s: %w", userID, TranslateError(err))
	}
	return entries, nil
}

// SumByUser adds up every entry of the user; zero when there are none.
func (r *LedgerRepository) SumByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1`
	if err := q.GetContext(ctx, &sum, query, userID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger entries for user %s: %w", userID, TranslateError(err))
	}
	return sum, nil
}
