// internal/domain/ledger_entry.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// LedgerEntry is an immutable signed movement of funds for one user within one transfer.
// Negative amounts are debits, positive amounts are credits.
type LedgerEntry struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	UserID     uuid.UUID       `db:"user_id" json:"user_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"` // NUMERIC(20, 4) in DB
	TransferID uuid.UUID       `db:"transfer_id" json:"transfer_id"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// NewLedgerEntry creates a new LedgerEntry instance.
func NewLedgerEntry(userID uuid.UUID, amount decimal.Decimal, transferID uuid.UUID) *LedgerEntry {
	return &LedgerEntry{
		ID:         uuid.New(),
		UserID:     userID,
		Amount:     amount,
		TransferID: transferID,
		CreatedAt:  time.Now().UTC(),
	}
}

// SumEntries adds up the amounts of the given entries.
func SumEntries(entries []LedgerEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}
