// internal/service/transfer_service.go
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/events"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
)

// TransferService defines the interface for the transfer engine.
type TransferService interface {
	// ExecuteTransfer moves req.Amount from req.SenderID to req.RecipientID atomically.
	ExecuteTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error)
	// Deposit credits userID with funds drawn from the issuer account.
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey string) (*domain.TransferResult, error)
	// GetTransfer returns a transfer and the ledger entries it wrote.
	GetTransfer(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, []domain.LedgerEntry, error)
}

// RetryPolicy bounds how often a conflicting transfer is re-run from the start.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts, including the first one
	Backoff     time.Duration // Sleep before attempt n+1 is n*Backoff
}

// transferService implements the TransferService interface.
type transferService struct {
	dbBeginner   db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor   repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	balanceRepo  repository.BalanceRepository
	ledgerRepo   repository.LedgerRepository
	transferRepo repository.TransferRepository
	beginTx      db.BeginTxFunc    // Must give serializable isolation
	commitTx     db.CommitTxFunc   // Must report serialization failures as util.ErrConflict
	rollbackTx   db.RollbackTxFunc // Injected dependency for rolling back transactions
	publisher    events.Publisher
	retry        RetryPolicy
	logger       *slog.Logger
}

// NewTransferService creates a new instance of TransferService.
// A nil publisher disables event publishing; a nil logger uses slog.Default().
func NewTransferService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	balanceRepo repository.BalanceRepository,
	ledgerRepo repository.LedgerRepository,
	transferRepo repository.TransferRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	publisher events.Publisher,
	retry RetryPolicy,
	logger *slog.Logger,
) TransferService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &transferService{
		dbBeginner:   dbBeginner,
		dbExecutor:   dbExecutor,
		balanceRepo:  balanceRepo,
		ledgerRepo:   ledgerRepo,
		transferRepo: transferRepo,
		beginTx:      beginTx,
		commitTx:     commitTx,
		rollbackTx:   rollbackTx,
		publisher:    publisher,
		retry:        retry,
		logger:       logger,
	}
}

// ExecuteTransfer validates the request and runs it with bounded conflict retries.
func (s *transferService) ExecuteTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.execute(ctx, req, false)
}

// Deposit is a transfer from the issuer account, which is allowed to go negative.
func (s *transferService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey string) (*domain.TransferResult, error) {
	if !domain.IsValidAmount(amount) {
		return nil, util.ErrInvalidAmount
	}
	if domain.IsReservedUser(userID) {
		return nil, util.ErrInvalidInput
	}
	req := domain.TransferRequest{
		SenderID:       domain.IssuerID,
		RecipientID:    userID,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
	}
	return s.execute(ctx, req, true)
}

// GetTransfer returns a transfer with its ledger entries.
func (s *transferService) GetTransfer(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, []domain.LedgerEntry, error) {
	transfer, err := s.transferRepo.GetTransferByID(ctx, s.dbExecutor, transferID)
	if err != nil {
		return nil, nil, fmt.Errorf("get transfer: failed to get transfer %s: %w", transferID, storeError(ctx, err))
	}
	entries, err := s.ledgerRepo.ListEntriesByTransfer(ctx, s.dbExecutor, transferID)
	if err != nil {
		return nil, nil, fmt.Errorf("get transfer: failed to list entries of transfer %s: %w", transferID, storeError(ctx, err))
	}
	return transfer, entries, nil
}

func (s *transferService) execute(ctx context.Context, req domain.TransferRequest, allowOverdraft bool) (*domain.TransferResult, error) {
	if req.IdempotencyKey != "" {
		res, err := s.replay(ctx, req)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, util.ErrNotFound) {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		res, err := s.attempt(ctx, req, allowOverdraft)
		switch {
		case err == nil:
			s.publish(ctx, res)
			return res, nil
		case errors.Is(err, util.ErrDuplicateEntry) && req.IdempotencyKey != "":
			// A concurrent request with the same key committed first, unless the
			// violated constraint was some other unique index.
			res, replayErr := s.replay(ctx, req)
			if errors.Is(replayErr, util.ErrNotFound) {
				return nil, err
			}
			return res, replayErr
		case !errors.Is(err, util.ErrConflict):
			return nil, err
		}

		lastErr = err
		s.logger.Warn("Transfer attempt conflicted",
			"attempt", attempt,
			"max_attempts", s.retry.MaxAttempts,
			"sender_id", req.SenderID,
			"recipient_id", req.RecipientID,
			"error", err,
		)
		if attempt < s.retry.MaxAttempts {
			if err := sleepCtx(ctx, time.Duration(attempt)*s.retry.Backoff); err != nil {
				return nil, fmt.Errorf("transfer: retry aborted: %w", err)
			}
		}
	}
	return nil, fmt.Errorf("transfer: gave up after %d attempts: %w", s.retry.MaxAttempts, lastErr)
}

// attempt runs the whole transfer inside one serializable transaction.
// Any error leaves the transaction rolled back.
func (s *transferService) attempt(ctx context.Context, req domain.TransferRequest, allowOverdraft bool) (*domain.TransferResult, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to begin transaction: %w", storeError(ctx, err))
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("transfer: transaction controller does not implement DBExecutor")
	}

	senderPrior, recipientPrior, err := s.lockActiveBalances(ctx, txExecutor, req.SenderID, req.RecipientID)
	if err != nil {
		return nil, err
	}
	senderAmount := amountOf(senderPrior)
	recipientAmount := amountOf(recipientPrior)

	if !allowOverdraft && senderAmount.LessThan(req.Amount) {
		return nil, util.ErrInsufficientFunds
	}
	senderNextAmount := senderAmount.Sub(req.Amount)
	recipientNextAmount := recipientAmount.Add(req.Amount)
	if !domain.IsStorableBalance(senderNextAmount) || !domain.IsStorableBalance(recipientNextAmount) {
		return nil, fmt.Errorf("transfer: balance after moving %s from %s to %s: %w",
			req.Amount, req.SenderID, req.RecipientID, util.ErrBalanceOutOfRange)
	}

	transfer := domain.NewTransfer(req.SenderID, req.RecipientID, req.Amount, req.IdempotencyKey)
	if err := s.transferRepo.CreateTransfer(ctx, txExecutor, transfer); err != nil {
		return nil, fmt.Errorf("transfer: failed to create transfer: %w", storeError(ctx, err))
	}

	debit := domain.NewLedgerEntry(req.SenderID, req.Amount.Neg(), transfer.ID)
	credit := domain.NewLedgerEntry(req.RecipientID, req.Amount, transfer.ID)
	for _, entry := range []*domain.LedgerEntry{debit, credit} {
		if err := s.ledgerRepo.CreateEntry(ctx, txExecutor, entry); err != nil {
			return nil, fmt.Errorf("transfer: failed to create ledger entry: %w", storeError(ctx, err))
		}
	}

	if err := s.closeBalance(ctx, txExecutor, senderPrior, debit.ID); err != nil {
		return nil, err
	}
	if err := s.closeBalance(ctx, txExecutor, recipientPrior, credit.ID); err != nil {
		return nil, err
	}

	senderNext := domain.NewBalance(req.SenderID, senderNextAmount, debit.ID)
	recipientNext := domain.NewBalance(req.RecipientID, recipientNextAmount, credit.ID)
	for _, balance := range []*domain.Balance{senderNext, recipientNext} {
		if err := s.balanceRepo.CreateBalance(ctx, txExecutor, balance); err != nil {
			return nil, fmt.Errorf("transfer: failed to open balance for user %s: %w", balance.UserID, storeError(ctx, err))
		}
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("transfer: failed to commit transaction: %w", storeError(ctx, err))
	}

	return &domain.TransferResult{
		Transfer:         transfer,
		SenderBalance:    senderNext.Amount,
		RecipientBalance: recipientNext.Amount,
	}, nil
}

// lockActiveBalances reads both parties' active balances in ascending user-id order
// so concurrent transfers over the same pair take row locks in the same order.
// A nil balance means the user has none yet.
func (s *transferService) lockActiveBalances(ctx context.Context, q repository.DBExecutor, senderID, recipientID uuid.UUID) (*domain.Balance, *domain.Balance, error) {
	first, second := senderID, recipientID
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}

	found := make(map[uuid.UUID]*domain.Balance, 2)
	for _, userID := range []uuid.UUID{first, second} {
		balance, err := s.balanceRepo.GetActiveBalanceForUpdate(ctx, q, userID)
		if err != nil && !errors.Is(err, util.ErrNotFound) {
			return nil, nil, fmt.Errorf("transfer: failed to read active balance of user %s: %w", userID, storeError(ctx, err))
		}
		found[userID] = balance
	}
	return found[senderID], found[recipientID], nil
}

// closeBalance closes prior with closeLedgerID. A prior that another transfer
// closed in the meantime is a conflict.
func (s *transferService) closeBalance(ctx context.Context, q repository.DBExecutor, prior *domain.Balance, closeLedgerID uuid.UUID) error {
	if prior == nil {
		return nil
	}
	result, err := s.balanceRepo.CloseBalance(ctx, q, prior.ID, closeLedgerID)
	if err != nil {
		return fmt.Errorf("transfer: failed to close balance %s: %w", prior.ID, storeError(ctx, err))
	}
	switch result {
	case repository.CloseResultClosed:
		return nil
	case repository.CloseResultAlreadyClosed:
		return fmt.Errorf("transfer: balance %s of user %s was closed concurrently: %w", prior.ID, prior.UserID, util.ErrConflict)
	default:
		return fmt.Errorf("transfer: unexpected close result %v for balance %s", result, prior.ID)
	}
}

// replay returns the transfer stored under req.IdempotencyKey, or util.ErrNotFound.
func (s *transferService) replay(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	transfer, err := s.transferRepo.GetTransferByIdempotencyKey(ctx, s.dbExecutor, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("transfer: failed to look up idempotency key: %w", storeError(ctx, err))
	}
	if !transfer.Matches(req) {
		return nil, util.ErrIdempotencyMismatch
	}

	entries, err := s.ledgerRepo.ListEntriesByTransfer(ctx, s.dbExecutor, transfer.ID)
	if err != nil {
		return nil, fmt.Errorf("transfer: failed to list entries of transfer %s: %w", transfer.ID, storeError(ctx, err))
	}
	res := &domain.TransferResult{Transfer: transfer, Replayed: true}
	for _, entry := range entries {
		balance, err := s.balanceRepo.GetBalanceByOpenLedgerID(ctx, s.dbExecutor, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("transfer: failed to get balance opened by entry %s: %w", entry.ID, storeError(ctx, err))
		}
		switch entry.UserID {
		case transfer.SenderID:
			res.SenderBalance = balance.Amount
		case transfer.RecipientID:
			res.RecipientBalance = balance.Amount
		}
	}
	return res, nil
}

func (s *transferService) publish(ctx context.Context, res *domain.TransferResult) {
	if err := s.publisher.Publish(ctx, domain.NewTransferCompleted(res)); err != nil {
		// The transfer is committed; delivery failures are only reported.
		s.logger.Error("Failed to publish transfer event", "transfer_id", res.Transfer.ID, "error", err)
	}
}

func amountOf(balance *domain.Balance) decimal.Decimal {
	if balance == nil {
		return decimal.Zero
	}
	return balance.Amount
}
