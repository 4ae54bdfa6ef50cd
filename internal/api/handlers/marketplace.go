package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentoven/agentoven/ledger/internal/ledger"
	"github.com/agentoven/agentoven/ledger/pkg/contracts"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Marketplace Handlers ─────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type listAgentRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       models.Amount `json:"price"`
	Category    string        `json:"category"`
	Funds       []models.Coin `json:"funds,omitempty"`
}

type updateListingRequest struct {
	models.ListingPatch
	Funds []models.Coin `json:"funds,omitempty"`
}

func (h *Handlers) MarketplaceConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Ledger.MarketplaceConfig()
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// BrowseListings returns active listings, optionally narrowed by the
// category and search query parameters.
func (h *Handlers) BrowseListings(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	listings, err := h.Ledger.Browse(page, contracts.BrowseFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondListings(w, listings)
}

func (h *Handlers) SellerListings(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	listings, err := h.Ledger.SellerListings(chi.URLParam(r, "owner"), page)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondListings(w, listings)
}

func (h *Handlers) GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	listing, err := h.Ledger.Listing(id)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

func (h *Handlers) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req listAgentRequest
	if err := decodeBody(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.execute(w, r, http.StatusCreated, req.Funds, ledger.ListAgent{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
	})
}

func (h *Handlers) UpdateListing(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req updateListingRequest
	if err := decodeBody(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.execute(w, r, http.StatusOK, req.Funds, ledger.UpdateListing{AgentID: id, ListingPatch: req.ListingPatch})
}

func (h *Handlers) RemoveListing(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req fundsRequest
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.execute(w, r, http.StatusOK, req.Funds, ledger.RemoveListing{AgentID: id})
}

// PurchaseListing pays for a listing with the funds in the body. The
// response carries the settlement receipt and the executed transfers.
func (h *Handlers) PurchaseListing(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req fundsRequest
	if err := decodeBody(r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.execute(w, r, http.StatusOK, req.Funds, ledger.PurchaseListing{AgentID: id})
}

func respondListings(w http.ResponseWriter, listings []models.Listing) {
	if listings == nil {
		listings = []models.Listing{}
	}
	respondJSON(w, http.StatusOK, models.ListingsPage{Listings: listings})
}
