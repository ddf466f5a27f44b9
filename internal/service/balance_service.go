// internal/service/balance_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
)

const (
	defaultEntriesLimit = 10
	maxEntriesLimit     = 100
)

// BalanceService defines the read-only balance queries.
type BalanceService interface {
	// GetBalance returns the amount of the user's active balance, or zero when there is none.
	GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	// GetBalanceHistory returns every balance snapshot of the user, oldest first.
	GetBalanceHistory(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error)
	// GetLedgerEntries returns a page of the user's ledger entries and the total count.
	GetLedgerEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int64, error)
}

type balanceService struct {
	dbExecutor  repository.DBExecutor
	balanceRepo repository.BalanceRepository
	ledgerRepo  repository.LedgerRepository
}

// NewBalanceService creates a new instance of BalanceService.
func NewBalanceService(
	dbExecutor repository.DBExecutor,
	balanceRepo repository.BalanceRepository,
	ledgerRepo repository.LedgerRepository,
) BalanceService {
	return &balanceService{
		dbExecutor:  dbExecutor,
		balanceRepo: balanceRepo,
		ledgerRepo:  ledgerRepo,
	}
}

// GetBalance resolves the user's current balance.
func (s *balanceService) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	balance, err := s.balanceRepo.GetActiveBalance(ctx, s.dbExecutor, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get balance: failed to read active balance of user %s: %w", userID, storeError(ctx, err))
	}
	return balance.Amount, nil
}

// GetBalanceHistory retrieves the user's balance chain.
func (s *balanceService) GetBalanceHistory(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	chain, err := s.balanceRepo.ListBalanceChain(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("get balance history: failed to list balances of user %s: %w", userID, storeError(ctx, err))
	}
	return chain, nil
}

// GetLedgerEntries retrieves the user's ledger entries with pagination.
func (s *balanceService) GetLedgerEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	if limit <= 0 {
		limit = defaultEntriesLimit
	}
	if limit > maxEntriesLimit {
		limit = maxEntriesLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.ledgerRepo.ListEntriesByUser(ctx, s.dbExecutor, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("get ledger entries: failed to list entries of user %s: %w", userID, storeError(ctx, err))
	}
	return entries, total, nil
}
