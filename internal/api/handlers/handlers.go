// Package handlers implements the HTTP handlers of the ledger node. Every
// mutating handler turns its request into a ledger message and executes it
// for the authenticated caller; queries read committed state.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/agentoven/agentoven/ledger/internal/ledger"
	"github.com/agentoven/agentoven/ledger/pkg/contracts"
	pkgmw "github.com/agentoven/agentoven/ledger/pkg/middleware"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// maxBodyBytes bounds request bodies; configuration blobs are the largest.
const maxBodyBytes = 1 << 20

// Handlers holds all handler dependencies.
type Handlers struct {
	Ledger contracts.LedgerService
}

// New creates a new Handlers instance.
func New(l contracts.LedgerService) *Handlers {
	return &Handlers{Ledger: l}
}

// ── Execute ─────────────────────────────────────────────────

// executeRequest is the envelope of POST /api/v1/execute.
type executeRequest struct {
	Msg   json.RawMessage `json:"msg"`
	Funds []models.Coin   `json:"funds,omitempty"`
}

// Execute runs any message variant given in its tagged wire form.
func (h *Handlers) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Msg) == 0 {
		respondError(w, http.StatusBadRequest, "msg is required")
		return
	}
	msg, err := ledger.DecodeMsg(req.Msg)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.execute(w, r, http.StatusOK, req.Funds, msg)
}

// execute runs msg for the request's caller and writes the result.
func (h *Handlers) execute(w http.ResponseWriter, r *http.Request, status int, funds []models.Coin, msg contracts.Msg) {
	res, err := h.Ledger.Execute(r.Context(), pkgmw.Caller(r.Context()), funds, msg)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, status, res)
}

// ── Health ──────────────────────────────────────────────────

// Health reports whether the store answers.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.Ping(r.Context()); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "ledger",
	})
}

// ── Helpers ─────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondLedgerError maps a ledger error to its status code. The error kind
// is returned alongside the message so clients can branch on it.
func respondLedgerError(w http.ResponseWriter, err error) {
	kind := ledger.ErrorKind(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("kind", kind).Msg("Ledger request failed")
	}
	respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
}

func statusForKind(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "unauthorized":
		return http.StatusForbidden
	case "no_caller":
		return http.StatusUnauthorized
	case "listing_inactive":
		return http.StatusConflict
	case "no_funds", "insufficient_funds", "invalid":
		return http.StatusBadRequest
	case "insufficient_balance":
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes the JSON body into v. An empty body is an error only
// when required is set.
func decodeBody(r *http.Request, v interface{}, required bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) && !required {
		return nil
	}
	return err
}

// idParam parses the {id} route parameter.
func idParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// pageParams parses the start_after and limit query parameters.
func pageParams(r *http.Request) (contracts.Page, error) {
	var p contracts.Page
	q := r.URL.Query()
	if s := q.Get("start_after"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return p, fmt.Errorf("invalid start_after %q", s)
		}
		p.StartAfter = &v
	}
	if s := q.Get("limit"); s != "" {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return p, fmt.Errorf("invalid limit %q", s)
		}
		l := uint32(v)
		p.Limit = &l
	}
	return p, nil
}
