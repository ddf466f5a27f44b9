// internal/repository/balance_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"finflow-ledger/internal/domain"
)

// CloseResult is the outcome of a conditional balance close.
type CloseResult int

const (
	// CloseResultClosed means the balance was open and now references the closing entry.
	CloseResultClosed CloseResult = iota + 1
	// CloseResultAlreadyClosed means another transfer closed the balance first.
	CloseResultAlreadyClosed
)

// String implements fmt.Stringer.
func (r CloseResult) String() string {
	switch r {
	case CloseResultClosed:
		return "closed"
	case CloseResultAlreadyClosed:
		return "already_closed"
	default:
		return "unknown"
	}
}

// BalanceRepository defines the interface for balance snapshot operations.
type BalanceRepository interface {
	// GetActiveBalance returns the user's unclosed balance or util.ErrNotFound.
	GetActiveBalance(ctx context.Context, q DBExecutor, userID uuid.UUID) (*domain.Balance, error)
	// GetActiveBalanceForUpdate is GetActiveBalance with a row lock held until the transaction ends.
	GetActiveBalanceForUpdate(ctx context.Context, q DBExecutor, userID uuid.UUID) (*domain.Balance, error)
	// GetBalanceByOpenLedgerID returns the balance opened by the given entry or util.ErrNotFound.
	GetBalanceByOpenLedgerID(ctx context.Context, q DBExecutor, ledgerID uuid.UUID) (*domain.Balance, error)
	// CreateBalance inserts a new active balance.
	CreateBalance(ctx context.Context, q DBExecutor, balance *domain.Balance) error
	// CloseBalance sets the close reference of balanceID only if it is still open.
	CloseBalance(ctx context.Context, q DBExecutor, balanceID, closeLedgerID uuid.UUID) (CloseResult, error)
	// ListBalanceChain returns every balance of the user, oldest first.
	ListBalanceChain(ctx context.Context, q DBExecutor, userID uuid.UUID) ([]domain.Balance, error)
	// CountActiveBalances counts the user's balances with no close reference.
	CountActiveBalances(ctx context.Context, q DBExecutor, userID uuid.UUID) (int64, error)
}
