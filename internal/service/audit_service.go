// internal/service/audit_service.go
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
	"finflow-ledger/pkg/db"
)

// AuditService verifies stored history against the ledger invariants.
type AuditService interface {
	AuditUser(ctx context.Context, userID uuid.UUID) (*domain.AuditReport, error)
	AuditTransfer(ctx context.Context, transferID uuid.UUID) (*domain.TransferAudit, error)
}

type auditService struct {
	dbBeginner   db.DBTxBeginner
	balanceRepo  repository.BalanceRepository
	ledgerRepo   repository.LedgerRepository
	transferRepo repository.TransferRepository
	beginTx      db.BeginTxFunc // Should give a read-only snapshot, e.g. db.BeginReadOnlyTx
	rollbackTx   db.RollbackTxFunc
}

// NewAuditService creates a new instance of AuditService.
// Audits never write, so transactions are always rolled back.
func NewAuditService(
	dbBeginner db.DBTxBeginner,
	balanceRepo repository.BalanceRepository,
	ledgerRepo repository.LedgerRepository,
	transferRepo repository.TransferRepository,
	beginTx db.BeginTxFunc,
	rollbackTx db.RollbackTxFunc,
) AuditService {
	return &auditService{
		dbBeginner:   dbBeginner,
		balanceRepo:  balanceRepo,
		ledgerRepo:   ledgerRepo,
		transferRepo: transferRepo,
		beginTx:      beginTx,
		rollbackTx:   rollbackTx,
	}
}

// AuditUser rebuilds the user's balance chain from stored rows and reports every
// place it disagrees with the ledger.
func (s *auditService) AuditUser(ctx context.Context, userID uuid.UUID) (*domain.AuditReport, error) {
	q, tx, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollbackTx(tx)

	chain, err := s.balanceRepo.ListBalanceChain(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("audit user: failed to list balances of user %s: %w", userID, storeError(ctx, err))
	}
	entries, err := s.ledgerRepo.ListAllEntriesByUser(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("audit user: failed to list entries of user %s: %w", userID, storeError(ctx, err))
	}
	activeCount, err := s.balanceRepo.CountActiveBalances(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("audit user: failed to count active balances of user %s: %w", userID, storeError(ctx, err))
	}

	report := &domain.AuditReport{
		UserID:        userID,
		ActiveBalance: decimal.Zero,
		LedgerSum:     domain.SumEntries(entries),
		ActiveCount:   int(activeCount),
		ChainLength:   len(chain),
	}
	problems := auditChain(userID, chain, entries)
	if activeCount > 1 {
		problems = append(problems, fmt.Sprintf("%d active balances", activeCount))
	}
	for _, balance := range chain {
		if balance.IsActive() {
			report.ActiveBalance = balance.Amount
		}
	}
	if !report.ActiveBalance.Equal(report.LedgerSum) {
		problems = append(problems, fmt.Sprintf("active balance %s does not match ledger sum %s",
			report.ActiveBalance.StringFixed(domain.AmountScale), report.LedgerSum.StringFixed(domain.AmountScale)))
	}

	report.Problems = problems
	report.Consistent = len(problems) == 0
	return report, nil
}

// auditChain checks that the chain is a single linked history in which every
// snapshot equals its predecessor plus the entry that opened it.
func auditChain(userID uuid.UUID, chain []domain.Balance, entries []domain.LedgerEntry) []string {
	var problems []string

	entryByID := make(map[uuid.UUID]domain.LedgerEntry, len(entries))
	for _, entry := range entries {
		entryByID[entry.ID] = entry
	}
	openedBy := make(map[uuid.UUID]domain.Balance, len(chain))
	for _, balance := range chain {
		openedBy[balance.OpenLedgerID] = balance
	}

	for _, balance := range chain {
		if _, ok := entryByID[balance.OpenLedgerID]; !ok {
			problems = append(problems, fmt.Sprintf("balance %s opened by entry %s that does not belong to the user", balance.ID, balance.OpenLedgerID))
		}
		if !balance.CloseLedgerID.Valid {
			continue
		}
		closeEntry, ok := entryByID[balance.CloseLedgerID.UUID]
		if !ok {
			problems = append(problems, fmt.Sprintf("balance %s closed by entry %s that does not belong to the user", balance.ID, balance.CloseLedgerID.UUID))
			continue
		}
		successor, ok := openedBy[balance.CloseLedgerID.UUID]
		if !ok {
			problems = append(problems, fmt.Sprintf("balance %s has no successor", balance.ID))
			continue
		}
		if want := balance.Amount.Add(closeEntry.Amount); !successor.Amount.Equal(want) {
			problems = append(problems, fmt.Sprintf("balance %s amount %s, expected %s",
				successor.ID, successor.Amount.StringFixed(domain.AmountScale), want.StringFixed(domain.AmountScale)))
		}
	}

	// The first snapshot has no predecessor, so it must equal its opening entry.
	if len(chain) > 0 {
		genesis := chain[0]
		if entry, ok := entryByID[genesis.OpenLedgerID]; ok && !genesis.Amount.Equal(entry.Amount) {
			problems = append(problems, fmt.Sprintf("first balance %s amount %s, expected %s",
				genesis.ID, genesis.Amount.StringFixed(domain.AmountScale), entry.Amount.StringFixed(domain.AmountScale)))
		}
	}

	// Every entry of the user must have opened exactly one snapshot.
	for _, entry := range entries {
		if _, ok := openedBy[entry.ID]; !ok {
			problems = append(problems, fmt.Sprintf("entry %s of user %s opened no balance", entry.ID, userID))
		}
	}
	return problems
}

// AuditTransfer checks that a transfer wrote a balanced debit and credit pair.
func (s *auditService) AuditTransfer(ctx context.Context, transferID uuid.UUID) (*domain.TransferAudit, error) {
	q, tx, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer s.rollbackTx(tx)

	transfer, err := s.transferRepo.GetTransferByID(ctx, q, transferID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, fmt.Errorf("audit transfer: transfer %s: %w", transferID, util.ErrNotFound)
		}
		return nil, fmt.Errorf("audit transfer: failed to get transfer %s: %w", transferID, storeError(ctx, err))
	}
	entries, err := s.ledgerRepo.ListEntriesByTransfer(ctx, q, transferID)
	if err != nil {
		return nil, fmt.Errorf("audit transfer: failed to list entries of transfer %s: %w", transferID, storeError(ctx, err))
	}

	audit := &domain.TransferAudit{
		TransferID: transferID,
		EntryCount: len(entries),
		Sum:        domain.SumEntries(entries),
	}
	var problems []string
	if len(entries) != 2 {
		problems = append(problems, fmt.Sprintf("expected 2 entries, found %d", len(entries)))
	}
	if !audit.Sum.IsZero() {
		problems = append(problems, fmt.Sprintf("entries sum to %s", audit.Sum.StringFixed(domain.AmountScale)))
	}
	for _, entry := range entries {
		switch {
		case entry.UserID == transfer.SenderID && !entry.Amount.Equal(transfer.Amount.Neg()):
			problems = append(problems, fmt.Sprintf("sender entry %s amount %s, expected %s",
				entry.ID, entry.Amount.StringFixed(domain.AmountScale), transfer.Amount.Neg().StringFixed(domain.AmountScale)))
		case entry.UserID == transfer.RecipientID && !entry.Amount.Equal(transfer.Amount):
			problems = append(problems, fmt.Sprintf("recipient entry %s amount %s, expected %s",
				entry.ID, entry.Amount.StringFixed(domain.AmountScale), transfer.Amount.StringFixed(domain.AmountScale)))
		case entry.UserID != transfer.SenderID && entry.UserID != transfer.RecipientID:
			problems = append(problems, fmt.Sprintf("entry %s belongs to user %s outside the transfer", entry.ID, entry.UserID))
		}
	}

	audit.Problems = problems
	audit.Consistent = len(problems) == 0
	return audit, nil
}

func (s *auditService) snapshot(ctx context.Context) (repository.DBExecutor, db.TxController, error) {
	tx, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("audit: failed to begin transaction: %w", storeError(ctx, err))
	}
	q, ok := tx.(repository.DBExecutor)
	if !ok {
		s.rollbackTx(tx)
		return nil, nil, fmt.Errorf("audit: transaction controller does not implement DBExecutor")
	}
	return q, tx, nil
}
