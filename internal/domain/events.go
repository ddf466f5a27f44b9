// internal/domain/events.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferCompleted is published once a transfer has been committed.
type TransferCompleted struct {
	TransferID       uuid.UUID       `json:"transfer_id"`
	SenderID         uuid.UUID       `json:"sender_id"`
	RecipientID      uuid.UUID       `json:"recipient_id"`
	Amount           decimal.Decimal `json:"amount"`
	SenderBalance    decimal.Decimal `json:"sender_balance"`
	RecipientBalance decimal.Decimal `json:"recipient_balance"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// NewTransferCompleted builds the event for a committed transfer result.
func NewTransferCompleted(res *TransferResult) TransferCompleted {
	return TransferCompleted{
		TransferID:       res.Transfer.ID,
		SenderID:         res.Transfer.SenderID,
		RecipientID:      res.Transfer.RecipientID,
		Amount:           res.Transfer.Amount,
		SenderBalance:    res.SenderBalance,
		RecipientBalance: res.RecipientBalance,
		OccurredAt:       res.Transfer.CreatedAt,
	}
}
