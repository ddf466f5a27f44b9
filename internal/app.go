// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "finflow-ledger/internal/api"
	"finflow-ledger/internal/api/handler"
	"finflow-ledger/internal/config"
	"finflow-ledger/internal/events"
	"finflow-ledger/internal/events/kafka"
	"finflow-ledger/internal/repository"
	"finflow-ledger/internal/repository/postgres"
	"finflow-ledger/internal/service"
	"finflow-ledger/internal/util"
	"finflow-ledger/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB

	// Repositories
	BalanceRepository  repository.BalanceRepository
	LedgerRepository   repository.LedgerRepository
	TransferRepository repository.TransferRepository

	// Services
	TransferService service.TransferService
	BalanceService  service.BalanceService
	AuditService    service.AuditService
	Publisher       events.Publisher

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Logger: util.GetLogger()}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if app.Config.AutoMigrate {
		if err := db.Migrate(ctx, app.DB); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		app.Logger.Info("Database schema applied.")
	}

	// 4. Initialize Repositories
	app.BalanceRepository = postgres.NewBalanceRepository()
	app.LedgerRepository = postgres.NewLedgerRepository()
	app.TransferRepository = postgres.NewTransferRepository()
	app.Logger.Info("Repositories initialized.")

	// 5. Initialize Event Publisher
	if len(app.Config.Kafka.Brokers) > 0 {
		app.Publisher = kafka.NewPublisher(app.Config.Kafka.Brokers, app.Config.Kafka.Topic)
		app.Logger.Info("Kafka publisher initialized.", "brokers", app.Config.Kafka.Brokers, "topic", app.Config.Kafka.Topic)
	} else {
		app.Publisher = events.NoopPublisher{}
		app.Logger.Info("No Kafka brokers configured, transfer events are dropped.")
	}

	// 6. Initialize Services
	// Serializable transactions for writes; commit errors are translated so that
	// serialization failures come back as util.ErrConflict.
	app.TransferService = service.NewTransferService(
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.BalanceRepository,
		app.LedgerRepository,
		app.TransferRepository,
		db.BeginTx,
		postgres.CommitTx,
		db.RollbackTx,
		app.Publisher,
		service.RetryPolicy{
			MaxAttempts: app.Config.Transfer.MaxAttempts,
			Backoff:     app.Config.Transfer.RetryBackoff,
		},
		app.Logger,
	)
	app.BalanceService = service.NewBalanceService(app.DB, app.BalanceRepository, app.LedgerRepository)
	app.AuditService = service.NewAuditService(
		app.DB,
		app.BalanceRepository,
		app.LedgerRepository,
		app.TransferRepository,
		db.BeginReadOnlyTx,
		db.RollbackTx,
	)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	if len(app.Config.OperatorIDs) == 0 {
		app.Logger.Warn("No LEDGER_OPERATOR_IDS configured; deposits and cross-user audits are rejected over HTTP.")
	}
	ledgerHandler := handler.NewLedgerHandler(app.TransferService, app.BalanceService, app.AuditService, app.Config.OperatorIDs, app.Logger)
	app.HTTPHandler = router.NewRouter(ledgerHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Publisher != nil {
		if err := app.Publisher.Close(); err != nil {
			app.Logger.Error("Failed to close event publisher", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
