// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/repository"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockBalanceRepository is a mock implementation of repository.BalanceRepository.
type MockBalanceRepository struct {
	mock.Mock
}

func (m *MockBalanceRepository) GetActiveBalance(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (*domain.Balance, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Balance), args.Error(1)
}

func (m *MockBalanceRepository) GetActiveBalanceForUpdate(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (*domain.Balance, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Balance), args.Error(1)
}

func (m *MockBalanceRepository) GetBalanceByOpenLedgerID(ctx context.Context, q repository.DBExecutor, ledgerID uuid.UUID) (*domain.Balance, error) {
	args := m.Called(ctx, q, ledgerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Balance), args.Error(1)
}

func (m *MockBalanceRepository) CreateBalance(ctx context.Context, q repository.DBExecutor, balance *domain.Balance) error {
	args := m.Called(ctx, q, balance)
	return args.Error(0)
}

func (m *MockBalanceRepository) CloseBalance(ctx context.Context, q repository.DBExecutor, balanceID, closeLedgerID uuid.UUID) (repository.CloseResult, error) {
	args := m.Called(ctx, q, balanceID, closeLedgerID)
	return args.Get(0).(repository.CloseResult), args.Error(1)
}

func (m *MockBalanceRepository) ListBalanceChain(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) ([]domain.Balance, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Balance), args.Error(1)
}

func (m *MockBalanceRepository) CountActiveBalances(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, q, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockLedgerRepository is a mock implementation of repository.LedgerRepository.
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) CreateEntry(ctx context.Context, q repository.DBExecutor, entry *domain.LedgerEntry) error {
	args := m.Called(ctx, q, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) ListEntriesByTransfer(ctx context.Context, q repository.DBExecutor, transferID uuid.UUID) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx, q, transferID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) ListEntriesByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	args := m.Called(ctx, q, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockLedgerRepository) ListAllEntriesByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) SumByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, q, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockTransferRepository is a mock implementation of repository.TransferRepository.
type MockTransferRepository struct {
	mock.Mock
}

func (m *MockTransferRepository) CreateTransfer(ctx context.Context, q repository.DBExecutor, transfer *domain.Transfer) error {
	args := m.Called(ctx, q, transfer)
	return args.Error(0)
}

func (m *MockTransferRepository) GetTransferByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Transfer, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transfer), args.Error(1)
}

func (m *MockTransferRepository) GetTransferByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.Transfer, error) {
	args := m.Called(ctx, q, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transfer), args.Error(1)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event domain.TransferCompleted) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController.
// It also implicitly implements repository.DBExecutor for testing purposes
// by embedding MockDBExecutor.
type MockTxController struct {
	mock.Mock
	MockDBExecutor // Embed MockDBExecutor to satisfy repository.DBExecutor interface
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
