// internal/domain/balance.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Balance is one snapshot of a user's funds. It is opened by one ledger entry and,
// once superseded, closed by the next one. The row with no close reference is the
// user's active balance.
type Balance struct {
	ID            uuid.UUID       `db:"id" json:"id"`                           // Primary key
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`                 // Owning user
	Amount        decimal.Decimal `db:"amount" json:"amount"`                   // NUMERIC(20, 4) in DB
	OpenLedgerID  uuid.UUID       `db:"open_ledger_id" json:"open_ledger_id"`   // Entry that produced this snapshot
	CloseLedgerID uuid.NullUUID   `db:"close_ledger_id" json:"close_ledger_id"` // Entry that superseded it, NULL while active
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// NewBalance creates an active Balance opened by the given ledger entry.
func NewBalance(userID uuid.UUID, amount decimal.Decimal, openLedgerID uuid.UUID) *Balance {
	now := time.Now().UTC()
	return &Balance{
		ID:           uuid.New(),
		UserID:       userID,
		Amount:       amount,
		OpenLedgerID: openLedgerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsActive reports whether the balance has not been closed yet.
func (b *Balance) IsActive() bool {
	return !b.CloseLedgerID.Valid
}
