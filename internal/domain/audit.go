// internal/domain/audit.go
package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditReport describes whether a user's balance chain agrees with their ledger.
type AuditReport struct {
	UserID        uuid.UUID       `json:"user_id"`
	ActiveBalance decimal.Decimal `json:"active_balance"` // Zero when the user has no active balance
	LedgerSum     decimal.Decimal `json:"ledger_sum"`     // Sum of every ledger entry of the user
	ActiveCount   int             `json:"active_count"`   // Number of balances with no close reference
	ChainLength   int             `json:"chain_length"`   // Number of balances, closed and active
	Consistent    bool            `json:"consistent"`
	Problems      []string        `json:"problems,omitempty"`
}

// TransferAudit describes whether a transfer's ledger entries conserve funds.
type TransferAudit struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	EntryCount int             `json:"entry_count"`
	Sum        decimal.Decimal `json:"sum"`
	Consistent bool            `json:"consistent"`
	Problems   []string        `json:"problems,omitempty"`
}
