// internal/domain/transfer.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations

	"finflow-ledger/internal/util"
)

// Transfer is the immutable record of moving funds from one user to another.
type Transfer struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	SenderID       uuid.UUID       `db:"sender_id" json:"sender_id"`
	RecipientID    uuid.UUID       `db:"recipient_id" json:"recipient_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`                   // Always positive, NUMERIC(20, 4) in DB
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key"` // Optional client supplied key
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// NewTransfer creates a new Transfer instance. An empty idempotencyKey is stored as NULL.
func NewTransfer(senderID, recipientID uuid.UUID, amount decimal.Decimal, idempotencyKey string) *Transfer {
	now := time.Now().UTC()
	t := &Transfer{
		ID:          uuid.New(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if idempotencyKey != "" {
		t.IdempotencyKey = &idempotencyKey
	}
	return t
}

// Matches reports whether the transfer was created for the same parties and amount as req.
func (t *Transfer) Matches(req TransferRequest) bool {
	return t.SenderID == req.SenderID &&
		t.RecipientID == req.RecipientID &&
		t.Amount.Equal(req.Amount)
}

// TransferRequest is a request to move Amount from SenderID to RecipientID.
type TransferRequest struct {
	SenderID       uuid.UUID
	RecipientID    uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Validate checks the request before any store access.
func (r TransferRequest) Validate() error {
	if !IsValidAmount(r.Amount) {
		return util.ErrInvalidAmount
	}
	if r.SenderID == r.RecipientID {
		return util.ErrSameParty
	}
	if IsReservedUser(r.SenderID) || IsReservedUser(r.RecipientID) {
		return util.ErrInvalidInput
	}
	return nil
}

// TransferResult is what a committed (or replayed) transfer returns to callers.
type TransferResult struct {
	Transfer         *Transfer       `json:"transfer"`
	SenderBalance    decimal.Decimal `json:"sender_balance"`
	RecipientBalance decimal.Decimal `json:"recipient_balance"`
	Replayed         bool            `json:"replayed"` // True when an earlier transfer with the same idempotency key was returned
}
