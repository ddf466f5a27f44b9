// internal/api/handler/audit.go
package handler

import (
	"net/http"
)

// AuditUser handles the balance chain audit of a user. Users may audit
// themselves; operators may audit anyone.
// GET /audit/users/{userID}
func (h *LedgerHandler) AuditUser(w http.ResponseWriter, r *http.Request) {
	if _, err := caller(r); err != nil {
		h.respondWithError(w, err)
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if _, err := h.authorize(r, userID); err != nil {
		h.respondWithError(w, err)
		return
	}

	report, err := h.audits.AuditUser(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if !report.Consistent {
		h.logger.Warn("Balance chain audit failed", "user_id", userID, "problems", report.Problems)
	}

	h.respondWithJSON(w, http.StatusOK, report)
}

// AuditTransfer handles the conservation audit of a transfer. Operators only.
// GET /audit/transfers/{transferID}
func (h *LedgerHandler) AuditTransfer(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authorize(r); err != nil {
		h.respondWithError(w, err)
		return
	}
	transferID, err := uuidParam(r, "transferID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	audit, err := h.audits.AuditTransfer(r.Context(), transferID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if !audit.Consistent {
		h.logger.Warn("Transfer audit failed", "transfer_id", transferID, "problems", audit.Problems)
	}

	h.respondWithJSON(w, http.StatusOK, audit)
}
