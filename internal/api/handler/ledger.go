// internal/api/handler/ledger.go
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finflow-ledger/internal/api/types"
	"finflow-ledger/internal/domain"
	"finflow-ledger/internal/service"
	"finflow-ledger/internal/util" // For custom errors
)

const (
	// DefaultTimeout bounds every request, including transfer retries.
	DefaultTimeout = 15 * time.Second

	// CallerHeader carries the verified caller id set by the upstream gateway.
	CallerHeader = "X-User-ID"
	// IdempotencyHeader carries an optional client key for transfers and deposits.
	IdempotencyHeader = "Idempotency-Key"
)

// LedgerHandler handles HTTP requests for balances, transfers and audits.
type LedgerHandler struct {
	transfers service.TransferService
	balances  service.BalanceService
	audits    service.AuditService
	operators map[uuid.UUID]struct{} // Callers allowed to deposit and to audit anyone
	logger    *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler. Only operatorIDs may call the
// deposit and audit endpoints on behalf of other users.
func NewLedgerHandler(transfers service.TransferService, balances service.BalanceService, audits service.AuditService, operatorIDs []uuid.UUID, logger *slog.Logger) *LedgerHandler {
	operators := make(map[uuid.UUID]struct{}, len(operatorIDs))
	for _, id := range operatorIDs {
		operators[id] = struct{}{}
	}
	return &LedgerHandler{
		transfers: transfers,
		balances:  balances,
		audits:    audits,
		operators: operators,
		logger:    logger,
	}
}

// Helper function to send JSON responses.
func (h *LedgerHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func (h *LedgerHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidAmount):
		statusCode = http.StatusBadRequest
		message = "Amount must be positive, below 1e16, with at most 4 decimal places"
	case util.IsError(err, util.ErrSameParty):
		statusCode = http.StatusBadRequest
		message = "Cannot transfer to yourself"
	case util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = err.Error() // Use the error message directly for invalid input
	case util.IsError(err, util.ErrBalanceOutOfRange):
		statusCode = http.StatusUnprocessableEntity
		message = "Resulting balance would exceed the supported range"
	case util.IsError(err, util.ErrMissingCaller):
		statusCode = http.StatusUnauthorized
		message = "Missing or invalid " + CallerHeader + " header"
	case util.IsError(err, util.ErrForbidden):
		statusCode = http.StatusForbidden
		message = "Operation requires an operator"
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired // 402 Payment Required
		message = "Insufficient funds"
	case util.IsError(err, util.ErrIdempotencyMismatch):
		statusCode = http.StatusConflict
		message = "Idempotency key was already used with different parameters"
	case util.IsError(err, util.ErrConflict):
		statusCode = http.StatusConflict
		message = "Concurrent update, please retry"
	case util.IsError(err, context.DeadlineExceeded):
		statusCode = http.StatusGatewayTimeout
		message = "Request timed out"
	case util.IsError(err, util.ErrStoreUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = "Service temporarily unavailable"
		h.logger.Error("Store unavailable", "error", err)
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// caller returns the verified user id of the request.
func caller(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.Header.Get(CallerHeader))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, util.ErrMissingCaller
	}
	return id, nil
}

// authorize returns the caller of r when it is an operator or one of owners.
func (h *LedgerHandler) authorize(r *http.Request, owners ...uuid.UUID) (uuid.UUID, error) {
	id, err := caller(r)
	if err != nil {
		return uuid.Nil, err
	}
	if _, ok := h.operators[id]; ok {
		return id, nil
	}
	for _, owner := range owners {
		if id == owner {
			return id, nil
		}
	}
	return uuid.Nil, util.ErrForbidden
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, util.ErrInvalidInput
	}
	return id, nil
}

// GetBalance handles the get balance request of the caller.
// GET /balance
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	amount, err := h.balances.GetBalance(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"amount":  amount.StringFixed(domain.AmountScale),
	})
}

// GetBalanceHistory handles the balance chain request of the caller.
// GET /balance/history
func (h *LedgerHandler) GetBalanceHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	chain, err := h.balances.GetBalanceHistory(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if chain == nil {
		chain = []domain.Balance{}
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"balances": chain,
	})
}

// GetLedgerEntries handles the ledger history request of the caller.
// GET /ledger?limit=&offset=
func (h *LedgerHandler) GetLedgerEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	// Parse query parameters for pagination
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10 // Default limit
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0 // Default offset
	}

	entries, total, err := h.balances.GetLedgerEntries(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}

	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.LedgerEntry]{
		Data:       entries,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}

// TransferRequest represents the request body for transfer.
type TransferRequest struct {
	RecipientID uuid.UUID       `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
}

// Transfer handles the transfer money request from the caller.
// POST /transfers
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	senderID, err := caller(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	res, err := h.transfers.ExecuteTransfer(r.Context(), domain.TransferRequest{
		SenderID:       senderID,
		RecipientID:    req.RecipientID,
		Amount:         req.Amount,
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithResult(w, res)
}

// DepositRequest represents the request body for deposit.
type DepositRequest struct {
	UserID uuid.UUID       `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// Deposit handles funding a user from the issuer account. Operators only.
// POST /deposits
func (h *LedgerHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	operatorID, err := h.authorize(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	res, err := h.transfers.Deposit(r.Context(), req.UserID, req.Amount, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.logger.Info("Deposit accepted", "operator_id", operatorID, "user_id", req.UserID, "transfer_id", res.Transfer.ID)

	h.respondWithResult(w, res)
}

func (h *LedgerHandler) respondWithResult(w http.ResponseWriter, res *domain.TransferResult) {
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	h.respondWithJSON(w, status, map[string]interface{}{
		"transfer_id":       res.Transfer.ID,
		"sender_balance":    res.SenderBalance.StringFixed(domain.AmountScale),
		"recipient_balance": res.RecipientBalance.StringFixed(domain.AmountScale),
		"replayed":          res.Replayed,
	})
}

// GetTransfer handles the transfer details request. Only the parties may read it.
// GET /transfers/{transferID}
func (h *LedgerHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	transferID, err := uuidParam(r, "transferID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	transfer, entries, err := h.transfers.GetTransfer(r.Context(), transferID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if transfer.SenderID != userID && transfer.RecipientID != userID {
		h.respondWithError(w, util.ErrNotFound)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"transfer": transfer,
		"entries":  entries,
	})
}
