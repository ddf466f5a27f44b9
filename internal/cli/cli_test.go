// internal/cli/cli_test.go
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/util"
)

type stubTransfers struct {
	lastReq     domain.TransferRequest
	lastDeposit decimal.Decimal
	lastKey     string
	err         error
}

func (s *stubTransfers) ExecuteTransfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &domain.TransferResult{
		Transfer:         domain.NewTransfer(req.SenderID, req.RecipientID, req.Amount, req.IdempotencyKey),
		SenderBalance:    decimal.NewFromInt(60),
		RecipientBalance: req.Amount,
	}, nil
}

func (s *stubTransfers) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, key string) (*domain.TransferResult, error) {
	s.lastDeposit, s.lastKey = amount, key
	if s.err != nil {
		return nil, s.err
	}
	return &domain.TransferResult{
		Transfer:         domain.NewTransfer(domain.IssuerID, userID, amount, key),
		SenderBalance:    amount.Neg(),
		RecipientBalance: amount,
	}, nil
}

func (s *stubTransfers) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, []domain.LedgerEntry, error) {
	return nil, nil, util.ErrNotFound
}

type stubBalances struct {
	amount decimal.Decimal
}

func (s *stubBalances) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return s.amount, nil
}

func (s *stubBalances) GetBalanceHistory(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	return nil, nil
}

func (s *stubBalances) GetLedgerEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	return nil, 0, nil
}

type stubAudits struct {
	report *domain.AuditReport
}

func (s *stubAudits) AuditUser(ctx context.Context, userID uuid.UUID) (*domain.AuditReport, error) {
	return s.report, nil
}

func (s *stubAudits) AuditTransfer(ctx context.Context, transferID uuid.UUID) (*domain.TransferAudit, error) {
	return nil, util.ErrNotFound
}

type cliFixture struct {
	transfers *stubTransfers
	balances  *stubBalances
	audits    *stubAudits
	migrated  bool
	closed    int
}

func (f *cliFixture) factory(ctx context.Context) (*Backend, error) {
	return &Backend{
		Transfers: f.transfers,
		Balances:  f.balances,
		Audits:    f.audits,
		Migrate: func(ctx context.Context) error {
			f.migrated = true
			return nil
		},
		Close: func() error {
			f.closed++
			return nil
		},
	}, nil
}

func newCLIFixture() *cliFixture {
	return &cliFixture{
		transfers: &stubTransfers{},
		balances:  &stubBalances{amount: decimal.RequireFromString("12.5")},
		audits:    &stubAudits{report: &domain.AuditReport{Consistent: true}},
	}
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(f.factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(newCLIFixture().factory)
	for _, name := range []string{"migrate", "balance", "deposit", "transfer", "audit"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := newCLIFixture().run(t, "--format", "yaml", "migrate")
	assert.ErrorContains(t, err, "invalid format")
}

func TestMigrateCommand(t *testing.T) {
	f := newCLIFixture()
	out, err := f.run(t, "migrate")
	require.NoError(t, err)
	assert.True(t, f.migrated)
	assert.Equal(t, 1, f.closed)
	assert.Contains(t, out, "schema applied")
}

func TestBalanceCommand(t *testing.T) {
	userID := uuid.New()

	t.Run("Text", func(t *testing.T) {
		out, err := newCLIFixture().run(t, "balance", userID.String())
		require.NoError(t, err)
		assert.Contains(t, out, "12.5000")
	})

	t.Run("JSON", func(t *testing.T) {
		out, err := newCLIFixture().run(t, "--format", "json", "balance", userID.String())
		require.NoError(t, err)
		var res balanceResult
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, userID, res.UserID)
		assert.Equal(t, "12.5000", res.Amount)
	})

	t.Run("InvalidUser", func(t *testing.T) {
		_, err := newCLIFixture().run(t, "balance", "nope")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestTransferCommand(t *testing.T) {
	sender, recipient := uuid.New(), uuid.New()

	t.Run("Success", func(t *testing.T) {
		f := newCLIFixture()
		out, err := f.run(t, "transfer", sender.String(), recipient.String(), "40", "--idempotency-key", "cli-1")
		require.NoError(t, err)
		assert.Equal(t, sender, f.transfers.lastReq.SenderID)
		assert.Equal(t, "cli-1", f.transfers.lastReq.IdempotencyKey)
		assert.Contains(t, out, "40.0000")
	})

	t.Run("Rejected", func(t *testing.T) {
		f := newCLIFixture()
		f.transfers.err = util.ErrInsufficientFunds
		_, err := f.run(t, "transfer", sender.String(), recipient.String(), "40")
		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		_, err := newCLIFixture().run(t, "transfer", sender.String(), recipient.String(), "forty")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestDepositCommand(t *testing.T) {
	f := newCLIFixture()
	out, err := f.run(t, "--format", "json", "deposit", uuid.NewString(), "100.25")
	require.NoError(t, err)
	assert.True(t, f.transfers.lastDeposit.Equal(decimal.RequireFromString("100.25")))

	var res transferResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.IssuerID, res.SenderID)
	assert.Equal(t, "-100.2500", res.SenderBalance)
}

func TestAuditCommand(t *testing.T) {
	t.Run("Consistent", func(t *testing.T) {
		out, err := newCLIFixture().run(t, "audit", uuid.NewString())
		require.NoError(t, err)
		assert.Contains(t, out, "consistent")
	})

	t.Run("Inconsistent", func(t *testing.T) {
		f := newCLIFixture()
		f.audits.report = &domain.AuditReport{Problems: []string{"2 active balances"}, ActiveCount: 2}
		out, err := f.run(t, "audit", uuid.NewString())
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "INCONSISTENT")
		assert.Contains(t, out, "2 active balances")
	})
}

func TestBackendFailure(t *testing.T) {
	cmd := NewRootCommand(func(ctx context.Context) (*Backend, error) {
		return nil, errors.New("connection refused")
	})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate"})
	err := cmd.Execute()
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
