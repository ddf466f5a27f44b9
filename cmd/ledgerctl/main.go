// cmd/ledgerctl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	app "finflow-ledger/internal"
	"finflow-ledger/internal/cli"
	"finflow-ledger/pkg/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(openLedger)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}

// openLedger initializes the same application the API server runs.
func openLedger(ctx context.Context) (*cli.Backend, error) {
	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		_ = application.Shutdown(ctx)
		return nil, err
	}
	return &cli.Backend{
		Transfers: application.TransferService,
		Balances:  application.BalanceService,
		Audits:    application.AuditService,
		Migrate: func(ctx context.Context) error {
			return db.Migrate(ctx, application.DB)
		},
		Close: func() error {
			return application.Shutdown(context.Background())
		},
	}, nil
}
