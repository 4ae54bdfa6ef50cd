package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Balances returns every non-zero balance held by {address}.
func (h *Handlers) Balances(w http.ResponseWriter, r *http.Request) {
	bal, err := h.Ledger.Balances(chi.URLParam(r, "address"))
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bal)
}
