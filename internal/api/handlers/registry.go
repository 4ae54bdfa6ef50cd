package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agentoven/agentoven/ledger/internal/ledger"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Registry Handlers ────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type registerAgentRequest struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Configuration string        `json:"configuration"`
	Funds         []models.Coin `json:"funds,omitempty"`
}

type updateAgentRequest struct {
	models.AgentPatch
	Funds []models.Coin `json:"funds,omitempty"`
}

type fundsRequest struct {
	Funds []models.Coin `json:"funds,omitempty"`
}

func (h *Handlers) RegistryConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Ledger.RegistryConfig()
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	agents, err := h.Ledger.Agents(page)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	if agents == nil {
		agents = []models.Agent{}
	}
	respondJSON(w, http.StatusOK, models.AgentsPage{Agents: agents})
}

func (h *Handlers) OwnerAgents(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	agents, err := h.Ledger.OwnerAgents(chi.URLParam(r, "owner"), page)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	if agents == nil {
		agents = []models.Agent{}
	}
	respondJSON(w, http.StatusOK, models.AgentsPage{Agents: agents})
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	agent, err := h.Ledger.Agent(id)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := decodeBody(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.execute(w, r, http.StatusCreated, req.Funds, ledger.RegisterAgent{
		Name:          req.Name,
		Description:   req.Description,
		Configuration: req.Configuration,
	})
}

func (h *Handlers) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req updateAgentRequest
	if err := decodeBody(r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.execute(w, r, http.StatusOK, req.Funds, ledger.UpdateAgent{AgentID: id, AgentPatch: req.AgentPatch})
}

func (h *Handlers) ActivateAgent(w http.ResponseWriter, r *http.Request) {
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
	h.execute(w, r, http.StatusOK, req.Funds, ledger.ActivateAgent{AgentID: id})
}

func (h *Handlers) DeactivateAgent(w http.ResponseWriter, r *http.Request) {
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
	h.execute(w, r, http.StatusOK, req.Funds, ledger.DeactivateAgent{AgentID: id})
}
