// internal/domain/amount.go
package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// AmountScale is the number of fractional digits an amount may carry.
// It matches the NUMERIC(20, 4) columns in the schema.
const AmountScale = 4

// MaxAmount is the largest magnitude a NUMERIC(20, 4) column holds: 16 integer
// digits and AmountScale fractional digits. It bounds request amounts and every
// balance snapshot, the issuer's included.
var MaxAmount = decimal.New(1, 16).Sub(decimal.New(1, -AmountScale))

// IssuerID is the reserved account that funds deposits.
// Its active balance is the negative of all money in circulation.
var IssuerID = uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")

// IsValidAmount reports whether amount is strictly positive, at most MaxAmount
// and representable at AmountScale without rounding.
func IsValidAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() || amount.GreaterThan(MaxAmount) {
		return false
	}
	return amount.Round(AmountScale).Equal(amount)
}

// IsStorableBalance reports whether a balance snapshot of amount fits its column.
func IsStorableBalance(amount decimal.Decimal) bool {
	return amount.Abs().LessThanOrEqual(MaxAmount)
}

// IsReservedUser reports whether id cannot take part in a regular transfer.
func IsReservedUser(id uuid.UUID) bool {
	return id == uuid.Nil || id == IssuerID
}
