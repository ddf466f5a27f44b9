// internal/repository/postgres/transfer_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
)

const transferColumns = `id, sender_id, recipient_id, amount, idempotency_key, created_at, updated_at`

// TransferRepository implements repository.TransferRepository for PostgreSQL.
type TransferRepository struct{}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository() repository.TransferRepository {
	return &TransferRepository{}
}

// CreateTransfer inserts a new transfer record using the provided DBExecutor.
func (r *TransferRepository) CreateTransfer(ctx context.Context, q repository.DBExecutor, transfer *domain.Transfer) error {
	query := `INSERT INTO transfers (` + transferColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := q.ExecContext(ctx, query,
		transfer.ID,
		transfer.SenderID,
		transfer.RecipientID,
		transfer.Amount,
		transfer.IdempotencyKey,
		transfer.CreatedAt,
		transfer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer: %w", TranslateError(err))
	}
	return nil
}

// GetTransferByID retrieves a transfer by its ID.
func (r *TransferRepository) GetTransferByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	return r.getOne(ctx, q, query, id)
}

// GetTransferByIdempotencyKey retrieves the transfer created with the given key.
func (r *TransferRepository) GetTransferByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE idempotency_key = $1`
	return r.getOne(ctx, q, query, key)
}

func (r *TransferRepository) getOne(ctx context.Context, q repository.DBExecutor, query string, arg interface{}) (*domain.Transfer, error) {
	var transfer domain.Transfer
	if err := q.GetContext(ctx, &transfer, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transfer: %w", TranslateError(err))
	}
	return &transfer, nil
}
