// Package contracts defines the service interfaces of the ledger node.
//
// The HTTP handlers depend on LedgerService rather than on the concrete
// ledger, so an embedding program can wrap it (rate limiting, auditing)
// without touching the handlers.
package contracts

import (
	"context"

	"github.com/agentoven/agentoven/ledger/internal/contract"
	"github.com/agentoven/agentoven/ledger/internal/ledger"
	"github.com/agentoven/agentoven/ledger/internal/marketplace"
	"github.com/agentoven/agentoven/ledger/internal/store"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// Type aliases so code outside this module can name the ledger's types
// without importing internal/ directly.
type (
	Msg          = ledger.Msg
	Result       = ledger.Result
	Page         = contract.Page
	BrowseFilter = marketplace.Filter
	ErrNotFound  = store.ErrNotFound
)

// ── Ledger Service ──────────────────────────────────────────

// LedgerService executes messages and answers queries.
// Implementation: internal/ledger.Ledger
type LedgerService interface {
	// Execute applies msg for caller with funds attached, atomically.
	Execute(ctx context.Context, caller string, funds []models.Coin, msg Msg) (*Result, error)

	RegistryConfig() (models.RegistryConfig, error)
	Agent(id uint64) (models.Agent, error)
	Agents(page Page) ([]models.Agent, error)
	OwnerAgents(owner string, page Page) ([]models.Agent, error)

	MarketplaceConfig() (models.MarketplaceConfig, error)
	Listing(id uint64) (models.Listing, error)
	Browse(page Page, f BrowseFilter) ([]models.Listing, error)
	SellerListings(seller string, page Page) ([]models.Listing, error)

	Balances(addr string) (models.Balances, error)

	// Ping checks the underlying store.
	Ping(ctx context.Context) error
}

var _ LedgerService = (*ledger.Ledger)(nil)
