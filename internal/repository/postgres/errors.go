// internal/repository/postgres/errors.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
)

// PostgreSQL error codes and constraint names the ledger reacts to.
const (
	codeSerializationFailure pq.ErrorCode = "40001"
	codeDeadlockDetected     pq.ErrorCode = "40P01"
	codeUniqueViolation      pq.ErrorCode = "23505"

	constraintActiveBalance  = "balances_one_active_per_user"
	constraintCloseLedger    = "balances_close_ledger_id_key"
	constraintIdempotencyKey = "transfers_idempotency_key_key"
)

// TranslateError maps driver errors onto the application's error taxonomy.
// Serialization failures, deadlocks and races on the active-balance index become
// util.ErrConflict so the transfer engine retries them; a reused idempotency key
// becomes util.ErrDuplicateEntry; context errors pass through; anything else is
// util.ErrStoreUnavailable. The original error stays in the chain.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, util.ErrConflict) || errors.Is(err, util.ErrDuplicateEntry) || errors.Is(err, util.ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", util.ErrConflict, err)
		case codeUniqueViolation:
			switch pqErr.Constraint {
			case constraintActiveBalance, constraintCloseLedger:
				return fmt.Errorf("%w: %w", util.ErrConflict, err)
			case constraintIdempotencyKey:
				return fmt.Errorf("%w: %w", util.ErrDuplicateEntry, err)
			}
			return fmt.Errorf("%w: %w", util.ErrDuplicateEntry, err)
		}
	}
	return fmt.Errorf("%w: %w", util.ErrStoreUnavailable, err)
}

// CommitTx commits tx and translates a failed commit, which is where PostgreSQL
// reports most serializable-isolation conflicts.
func CommitTx(tx db.TxController) error {
	return TranslateError(db.CommitTx(tx))
}
