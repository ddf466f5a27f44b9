// internal/cli/commands.go
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"finflow-ledger/internal/domain"
)

type messageResult struct {
	Message string `json:"message"`
}

func (r messageResult) Text() string { return r.Message }

type balanceResult struct {
	UserID uuid.UUID `json:"user_id"`
	Amount string    `json:"amount"`
}

func (r balanceResult) Text() string { return fmt.Sprintf("%s %s", r.UserID, r.Amount) }

type transferResult struct {
	TransferID       uuid.UUID `json:"transfer_id"`
	SenderID         uuid.UUID `json:"sender_id"`
	RecipientID      uuid.UUID `json:"recipient_id"`
	Amount           string    `json:"amount"`
	SenderBalance    string    `json:"sender_balance"`
	RecipientBalance string    `json:"recipient_balance"`
	Replayed         bool      `json:"replayed"`
}

func newTransferResult(res *domain.TransferResult) transferResult {
	return transferResult{
		TransferID:       res.Transfer.ID,
		SenderID:         res.Transfer.SenderID,
		RecipientID:      res.Transfer.RecipientID,
		Amount:           res.Transfer.Amount.StringFixed(domain.AmountScale),
		SenderBalance:    res.SenderBalance.StringFixed(domain.AmountScale),
		RecipientBalance: res.RecipientBalance.StringFixed(domain.AmountScale),
		Replayed:         res.Replayed,
	}
}

func (r transferResult) Text() string {
	text := fmt.Sprintf("transfer %s: %s -> %s %s (sender %s, recipient %s)",
		r.TransferID, r.SenderID, r.RecipientID, r.Amount, r.SenderBalance, r.RecipientBalance)
	if r.Replayed {
		text += " [replayed]"
	}
	return text
}

type auditResult struct {
	*domain.AuditReport
}

func (r auditResult) Text() string {
	var b strings.Builder
	status := "consistent"
	if !r.Consistent {
		status = "INCONSISTENT"
	}
	fmt.Fprintf(&b, "user %s: %s\n", r.UserID, status)
	fmt.Fprintf(&b, "  active balance: %s\n", r.ActiveBalance.StringFixed(domain.AmountScale))
	fmt.Fprintf(&b, "  ledger sum:     %s\n", r.LedgerSum.StringFixed(domain.AmountScale))
	fmt.Fprintf(&b, "  balances:       %d (%d active)", r.ChainLength, r.ActiveCount)
	for _, p := range r.Problems {
		fmt.Fprintf(&b, "\n  - %s", p)
	}
	return b.String()
}

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

func parseUser(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid user id %q", arg), err)
	}
	return id, nil
}

func parseAmount(arg string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(arg)
	if err != nil {
		return decimal.Zero, WrapExitError(ExitCommandError, fmt.Sprintf("invalid amount %q", arg), err)
	}
	return amount, nil
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions, newBackend BackendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, newBackend, func(ctx context.Context, b *Backend) error {
				if err := b.Migrate(ctx); err != nil {
					return WrapExitError(ExitFailure, "migration failed", err)
				}
				return formatter(rootOpts, cmd).Print(messageResult{Message: "schema applied"})
			})
		},
	}
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions, newBackend BackendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Show a user's current balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, newBackend, func(ctx context.Context, b *Backend) error {
				amount, err := b.Balances.GetBalance(ctx, userID)
				if err != nil {
					return WrapExitError(ExitFailure, "balance lookup failed", err)
				}
				return formatter(rootOpts, cmd).Print(balanceResult{UserID: userID, Amount: amount.StringFixed(domain.AmountScale)})
			})
		},
	}
}

// NewDepositCommand creates the deposit command.
func NewDepositCommand(rootOpts *RootOptions, newBackend BackendFactory) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "deposit <user-id> <amount>",
		Short: "Fund a user from the issuer account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			return withBackend(cmd, newBackend, func(ctx context.Context, b *Backend) error {
				res, err := b.Transfers.Deposit(ctx, userID, amount, key)
				if err != nil {
					return WrapExitError(ExitFailure, "deposit failed", err)
				}
				return formatter(rootOpts, cmd).Print(newTransferResult(res))
			})
		},
	}
	cmd.Flags().StringVar(&key, "idempotency-key", "", "replay-safe key for this deposit")
	return cmd
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions, newBackend BackendFactory) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "transfer <sender-id> <recipient-id> <amount>",
		Short: "Move money between two users",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			senderID, err := parseUser(args[0])
			if err != nil {
				return err
			}
			recipientID, err := parseUser(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			return withBackend(cmd, newBackend, func(ctx context.Context, b *Backend) error {
				res, err := b.Transfers.ExecuteTransfer(ctx, domain.TransferRequest{
					SenderID:       senderID,
					RecipientID:    recipientID,
					Amount:         amount,
					IdempotencyKey: key,
				})
				if err != nil {
					return WrapExitError(ExitFailure, "transfer failed", err)
				}
				return formatter(rootOpts, cmd).Print(newTransferResult(res))
			})
		},
	}
	cmd.Flags().StringVar(&key, "idempotency-key", "", "replay-safe key for this transfer")
	return cmd
}

// NewAuditCommand creates the audit command. It exits with ExitFailure when the
// user's balance chain is inconsistent.
func NewAuditCommand(rootOpts *RootOptions, newBackend BackendFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <user-id>",
		Short: "Verify a user's balance chain against the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUser(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, newBackend, func(ctx context.Context, b *Backend) error {
				report, err := b.Audits.AuditUser(ctx, userID)
				if err != nil {
					return WrapExitError(ExitFailure, "audit failed", err)
				}
				if err := formatter(rootOpts, cmd).Print(auditResult{report}); err != nil {
					return err
				}
				if !report.Consistent {
					return NewExitError(ExitFailure, fmt.Sprintf("balance chain of user %s is inconsistent", userID))
				}
				return nil
			})
		},
	}
}
