// internal/cli/root.go
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"finflow-ledger/internal/service"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Backend is what the commands operate on. Close releases whatever the factory opened.
type Backend struct {
	Transfers service.TransferService
	Balances  service.BalanceService
	Audits    service.AuditService
	Migrate   func(ctx context.Context) error
	Close     func() error
}

// BackendFactory builds a Backend for one command invocation.
type BackendFactory func(ctx context.Context) (*Backend, error)

// NewRootCommand creates the root command of the ledger admin CLI.
func NewRootCommand(newBackend BackendFactory) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "ledgerctl - ledger administration",
		Long:  "Administer the ledger: apply the schema, fund users, move money and audit balance chains.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // main prints the error once
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts, newBackend))
	cmd.AddCommand(NewBalanceCommand(opts, newBackend))
	cmd.AddCommand(NewDepositCommand(opts, newBackend))
	cmd.AddCommand(NewTransferCommand(opts, newBackend))
	cmd.AddCommand(NewAuditCommand(opts, newBackend))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withBackend opens a backend, runs fn and closes the backend again.
func withBackend(cmd *cobra.Command, newBackend BackendFactory, fn func(ctx context.Context, b *Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := newBackend(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	if b.Close != nil {
		defer func() { _ = b.Close() }()
	}
	return fn(ctx, b)
}
