// internal/repository/ledger_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finflow-ledger/internal/domain"
)

// LedgerRepository defines the interface for the append-only ledger entry store.
type LedgerRepository interface {
	// CreateEntry appends a ledger entry.
	CreateEntry(ctx context.Context, q DBExecutor, entry *domain.LedgerEntry) error
	// ListEntriesByTransfer returns the entries written by one transfer.
	ListEntriesByTransfer(ctx context.Context, q DBExecutor, transferID uuid.UUID) ([]domain.LedgerEntry, error)
	// ListEntriesByUser returns a page of the user's entries, newest first, and the total count.
	ListEntriesByUser(ctx context.Context, q DBExecutor, userID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int64, error)
	// ListAllEntriesByUser returns every entry of the user, oldest first.
	ListAllEntriesByUser(ctx context.Context, q DBExecutor, userID uuid.UUID) ([]domain.LedgerEntry, error)
	// SumByUser adds up every entry of the user.
	SumByUser(ctx context.Context, q DBExecutor, userID uuid.UUID) (decimal.Decimal, error)
}
