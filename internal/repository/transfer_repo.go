// internal/repository/transfer_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"finflow-ledger/internal/domain"
)

// TransferRepository defines the interface for transfer records.
type TransferRepository interface {
	// CreateTransfer inserts a transfer. A reused idempotency key yields util.ErrDuplicateEntry.
	CreateTransfer(ctx context.Context, q DBExecutor, transfer *domain.Transfer) error
	// GetTransferByID returns the transfer or util.ErrNotFound.
	GetTransferByID(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Transfer, error)
	// GetTransferByIdempotencyKey returns the transfer stored under key or util.ErrNotFound.
	GetTransferByIdempotencyKey(ctx context.Context, q DBExecutor, key string) (*domain.Transfer, error)
}
