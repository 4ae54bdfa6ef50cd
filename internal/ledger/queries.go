package ledger

import (
	"github.com/agentoven/agentoven/ledger/internal/contract"
	"github.com/agentoven/agentoven/ledger/internal/marketplace"
	"github.com/agentoven/agentoven/ledger/internal/store"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// ── Registry queries ────────────────────────────────────────

func (l *Ledger) registryView() store.Reader { return store.PrefixReader(l.kv, nsRegistry) }

func (l *Ledger) RegistryConfig() (models.RegistryConfig, error) {
	return l.registry.Config(l.registryView())
}

func (l *Ledger) Agent(id uint64) (models.Agent, error) {
	return l.registry.Agent(l.registryView(), id)
}

func (l *Ledger) Agents(page contract.Page) ([]models.Agent, error) {
	return l.registry.Agents(l.registryView(), page)
}

func (l *Ledger) OwnerAgents(owner string, page contract.Page) ([]models.Agent, error) {
	return l.registry.OwnerAgents(l.registryView(), owner, page)
}

// ── Marketplace queries ─────────────────────────────────────

func (l *Ledger) marketView() store.Reader { return store.PrefixReader(l.kv, nsMarketplace) }

func (l *Ledger) MarketplaceConfig() (models.MarketplaceConfig, error) {
	return l.market.Config(l.marketView())
}

func (l *Ledger) Listing(id uint64) (models.Listing, error) {
	return l.market.Listing(l.marketView(), id)
}

// Browse returns active listings matching f.
func (l *Ledger) Browse(page contract.Page, f marketplace.Filter) ([]models.Listing, error) {
	return l.market.Browse(l.marketView(), page, f)
}

func (l *Ledger) SellerListings(seller string, page contract.Page) ([]models.Listing, error) {
	return l.market.SellerListings(l.marketView(), seller, page)
}

// ── Bank queries ────────────────────────────────────────────

// Balances returns every non-zero coin held by addr.
func (l *Ledger) Balances(addr string) (models.Balances, error) {
	coins, err := l.bank.Balances(store.PrefixReader(l.kv, nsBank), addr)
	if err != nil {
		return models.Balances{}, err
	}
	if coins == nil {
		coins = []models.Coin{}
	}
	return models.Balances{Address: addr, Coins: coins}, nil
}
