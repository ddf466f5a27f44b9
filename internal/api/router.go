// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"finflow-ledger/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(ledgerHandler *handler.LedgerHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Bound every request

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Caller-scoped reads; the caller comes from the X-User-ID header
	r.Route("/balance", func(r chi.Router) {
		r.Get("/", ledgerHandler.GetBalance)
		r.Get("/history", ledgerHandler.GetBalanceHistory)
	})
	r.Get("/ledger", ledgerHandler.GetLedgerEntries)

	// Money movement
	r.Route("/transfers", func(r chi.Router) {
		r.Post("/", ledgerHandler.Transfer)
		r.Get("/{transferID}", ledgerHandler.GetTransfer)
	})
	r.Post("/deposits", ledgerHandler.Deposit)

	// Consistency checks over stored history
	r.Route("/audit", func(r chi.Router) {
		r.Get("/users/{userID}", ledgerHandler.AuditUser)
		r.Get("/transfers/{transferID}", ledgerHandler.AuditTransfer)
	})

	logger.Debug("HTTP routes registered")
	return r
}
