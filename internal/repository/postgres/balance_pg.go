// internal/repository/postgres/balance_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
)

const balanceColumns = `id, user_id, amount, open_ledger_id, close_ledger_id, created_at, updated_at`

// BalanceRepository implements repository.BalanceRepository for PostgreSQL.
type BalanceRepository struct{}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository() repository.BalanceRepository {
	return &BalanceRepository{}
}

// GetActiveBalance retrieves the user's unclosed balance using the provided DBExecutor.
func (r *BalanceRepository) GetActiveBalance(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1 AND close_ledger_id IS NULL`
	return r.getOne(ctx, q, query, userID)
}

// GetActiveBalanceForUpdate retrieves the user's unclosed balance and locks the row.
func (r *BalanceRepository) GetActiveBalanceForUpdate(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1 AND close_ledger_id IS NULL FOR UPDATE`
	return r.getOne(ctx, q, query, userID)
}

// GetBalanceByOpenLedgerID retrieves the balance opened by the given ledger entry.
func (r *BalanceRepository) GetBalanceByOpenLedgerID(ctx context.Context, q repository.DBExecutor, ledgerID uuid.UUID) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE open_ledger_id = $1`
	return r.getOne(ctx, q, query, ledgerID)
}

func (r *BalanceRepository) getOne(ctx context.Context, q repository.DBExecutor, query string, key uuid.UUID) (*domain.Balance, error) {
	var balance domain.Balance
	err := q.GetContext(ctx, &balance, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance by %s: %w", key, TranslateError(err))
	}
	return &balance, nil
}

// CreateBalance inserts a new balance snapshot.
func (r *BalanceRepository) CreateBalance(ctx context.Context, q repository.DBExecutor, balance *domain.Balance) error {
	query := `INSERT INTO balances (` + balanceColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := q.ExecContext(ctx, query,
		balance.ID,
		balance.UserID,
		balance.Amount,
		balance.OpenLedgerID,
		balance.CloseLedgerID,
		balance.CreatedAt,
		balance.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create balance for user %s: %w", balance.UserID, TranslateError(err))
	}
	return nil
}

// CloseBalance sets close_ledger_id only while it is still NULL. Zero affected rows
// means another transaction closed the balance first.
func (r *BalanceRepository) CloseBalance(ctx context.Context, q repository.DBExecutor, balanceID, closeLedgerID uuid.UUID) (repository.CloseResult, error) {
	query := `UPDATE balances SET close_ledger_id = $1, updated_at = $2
              WHERE id = $3 AND close_ledger_id IS NULL`
	result, err := q.ExecContext(ctx, query, closeLedgerID, time.Now().UTC(), balanceID)
	if err != nil {
		return 0, fmt.Errorf("failed to close balance %s: %w", balanceID, TranslateError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected after closing balance %s: %w", balanceID, TranslateError(err))
	}
	if rowsAffected == 0 {
		return repository.CloseResultAlreadyClosed, nil
	}
	return repository.CloseResultClosed, nil
}

// ListBalanceChain retrieves every balance of the user, oldest first.
func (r *BalanceRepository) ListBalanceChain(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) ([]domain.Balance, error) {
	balances := []domain.Balance{}
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1 ORDER BY created_at ASC, id ASC`
	if err := q.SelectContext(ctx, &balances, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list balances for user %s: %w", userID, TranslateError(err))
	}
	return balances, nil
}

// CountActiveBalances counts the user's unclosed balances.
func (r *BalanceRepository) CountActiveBalances(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM balances WHERE user_id = $1 AND close_ledger_id IS NULL`
	if err := q.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count active balances for user %s: %w", userID, TranslateError(err))
	}
	return count, nil
}
