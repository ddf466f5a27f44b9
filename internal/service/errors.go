// internal/service/errors.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finflow-ledger/internal/util"
)

// storeError classifies a failure reported by the persistence layer. Errors already
// in the taxonomy and context errors pass through; anything else is reported as
// util.ErrStoreUnavailable.
func storeError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, util.ErrConflict), errors.Is(err, util.ErrDuplicateEntry),
		errors.Is(err, util.ErrNotFound), errors.Is(err, util.ErrStoreUnavailable):
		return err
	}
	return fmt.Errorf("%w: %w", util.ErrStoreUnavailable, err)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
