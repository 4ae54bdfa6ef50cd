// Package marketplace implements the agent marketplace: owner-scoped
// listings that are soft-deleted on removal and sold to buyers through a
// fee-splitting settlement.
package marketplace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/agentoven/agentoven/ledger/internal/contract"
	"github.com/agentoven/agentoven/ledger/internal/store"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// DefaultDenom is the payment denomination when none is configured.
const DefaultDenom = "inj"

// Method names reported in events.
const (
	MethodInstantiate = "instantiate"
	MethodList        = "list_agent"
	MethodUpdate      = "update_agent"
	MethodRemove      = "remove_agent"
	MethodPurchase    = "purchase_agent"
)

// Filter narrows a browse. Empty fields match everything.
type Filter struct {
	Category string
	// Search is matched case-insensitively against name and description.
	Search string
}

func (f Filter) match(l models.Listing) bool {
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(l.Name), q) &&
			!strings.Contains(strings.ToLower(l.Description), q) {
			return false
		}
	}
	return true
}

// Marketplace owns the marketplace keyspace layout.
type Marketplace struct {
	config   store.Item[models.MarketplaceConfig]
	count    store.Item[uint64]
	listings store.Map[uint64, models.Listing]

	// newID issues receipt identifiers.
	newID func() string
}

// New declares the marketplace keyspace.
func New() *Marketplace {
	return &Marketplace{
		config:   store.NewItem[models.MarketplaceConfig]("config"),
		count:    store.NewItem[uint64]("listing_count"),
		listings: store.NewU64Map[models.Listing]("listings"),
		newID:    func() string { return uuid.New().String() },
	}
}

// Instantiated reports whether Instantiate has run against st.
func (m *Marketplace) Instantiated(st store.Reader) (bool, error) {
	_, ok, err := m.config.MayLoad(st)
	return ok, err
}

// Instantiate fixes the operator (the sender), the fee and the denomination.
// There is no way to change them afterwards.
func (m *Marketplace) Instantiate(st store.ReadWriter, info contract.Info, feePercentage uint32, denom string) (*contract.Response, error) {
	if feePercentage > MaxFeePercentage {
		return nil, contract.ErrInvalidFee
	}
	if denom == "" {
		denom = DefaultDenom
	}
	cfg := models.MarketplaceConfig{
		Operator:      info.Sender,
		FeePercentage: feePercentage,
		Denom:         denom,
	}
	if err := m.config.Save(st, cfg); err != nil {
		return nil, err
	}
	if err := m.count.Save(st, 0); err != nil {
		return nil, err
	}
	return &contract.Response{
		Event: models.NewEvent(MethodInstantiate).
			With("owner", info.Sender).
			With("fee_percentage", fmt.Sprint(feePercentage)),
	}, nil
}

// List creates an active listing owned by the caller.
func (m *Marketplace) List(st store.ReadWriter, info contract.Info, name, description string, price models.Amount, category string) (*contract.Response, error) {
	count, err := m.count.Load(st)
	if err != nil {
		return nil, err
	}
	if count == ^uint64(0) {
		return nil, fmt.Errorf("listing id space exhausted: %w", contract.ErrOverflow)
	}
	id := count + 1

	listing := models.Listing{
		ID:          id,
		Owner:       info.Sender,
		Name:        name,
		Description: description,
		Price:       price,
		Category:    category,
		IsActive:    true,
	}
	if err := m.count.Save(st, id); err != nil {
		return nil, err
	}
	if err := m.listings.Save(st, id, listing); err != nil {
		return nil, err
	}
	return &contract.Response{
		ID: id,
		Event: models.NewEvent(MethodList).
			WithID("agent_id", id).
			With("owner", info.Sender),
	}, nil
}

// Update applies a sparse patch to a listing, active or not.
func (m *Marketplace) Update(st store.ReadWriter, info contract.Info, id uint64, patch models.ListingPatch) (*contract.Response, error) {
	listing, err := m.loadOwned(st, info, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		listing.Name = *patch.Name
	}
	if patch.Description != nil {
		listing.Description = *patch.Description
	}
	if patch.Price != nil {
		listing.Price = *patch.Price
	}
	if patch.Category != nil {
		listing.Category = *patch.Category
	}

	if err := m.listings.Save(st, id, listing); err != nil {
		return nil, err
	}
	return &contract.Response{
		Event: models.NewEvent(MethodUpdate).WithID("agent_id", id),
	}, nil
}

// Remove soft-deletes a listing. Removing a removed listing succeeds.
func (m *Marketplace) Remove(st store.ReadWriter, info contract.Info, id uint64) (*contract.Response, error) {
	listing, err := m.loadOwned(st, info, id)
	if err != nil {
		return nil, err
	}
	listing.IsActive = false

	if err := m.listings.Save(st, id, listing); err != nil {
		return nil, err
	}
	return &contract.Response{
		Event: models.NewEvent(MethodRemove).WithID("agent_id", id),
	}, nil
}

// Purchase settles a sale. Every check runs before any write; on success
// the response carries two transfers, the seller's proceeds first and the
// operator's fee second, which the host applies atomically with the request.
// The listing itself is not modified and stays purchasable.
func (m *Marketplace) Purchase(st store.Reader, info contract.Info, id uint64) (*contract.Response, error) {
	listing, err := m.listings.Load(st, id)
	if err != nil {
		return nil, err
	}
	cfg, err := m.config.Load(st)
	if err != nil {
		return nil, err
	}

	if !listing.IsActive {
		return nil, contract.ErrListingInactive
	}

	payment, ok := findPayment(info.Funds, cfg.Denom)
	if !ok {
		return nil, contract.ErrNoFunds
	}
	if payment.Amount.Lt(listing.Price) {
		return nil, fmt.Errorf("%w: sent %s%s, price %s%s",
			contract.ErrInsufficientFunds, payment.Amount, cfg.Denom, listing.Price, cfg.Denom)
	}

	fee, sellerAmount, err := Split(listing.Price, cfg.FeePercentage)
	if err != nil {
		return nil, err
	}
	excess, _ := payment.Amount.Sub(listing.Price)

	receipt := &models.Receipt{
		ID:           m.newID(),
		ListingID:    id,
		Buyer:        info.Sender,
		Seller:       listing.Owner,
		Operator:     cfg.Operator,
		Denom:        cfg.Denom,
		Price:        listing.Price,
		Fee:          fee,
		SellerAmount: sellerAmount,
		Paid:         payment.Amount,
		Excess:       excess,
	}

	return &contract.Response{
		Transfers: []models.Transfer{
			{Recipient: listing.Owner, Denom: cfg.Denom, Amount: sellerAmount},
			{Recipient: cfg.Operator, Denom: cfg.Denom, Amount: fee},
		},
		Receipt: receipt,
		Event: models.NewEvent(MethodPurchase).
			WithID("agent_id", id).
			With("buyer", info.Sender).
			With("seller", listing.Owner).
			With("price", listing.Price.String()).
			With("fee", fee.String()),
	}, nil
}

func (m *Marketplace) loadOwned(st store.Reader, info contract.Info, id uint64) (models.Listing, error) {
	listing, err := m.listings.Load(st, id)
	if err != nil {
		return listing, err
	}
	if err := contract.Guard(listing.Owner, info.Sender); err != nil {
		return listing, err
	}
	return listing, nil
}

// ── Queries ─────────────────────────────────────────────────

// Config returns the fixed marketplace parameters.
func (m *Marketplace) Config(st store.Reader) (models.MarketplaceConfig, error) {
	return m.config.Load(st)
}

// Listing returns one listing whether or not it is active.
func (m *Marketplace) Listing(st store.Reader, id uint64) (models.Listing, error) {
	return m.listings.Load(st, id)
}

// Browse returns a page of active listings matching f. The limit counts
// matches, not scanned identifiers.
func (m *Marketplace) Browse(st store.Reader, page contract.Page, f Filter) ([]models.Listing, error) {
	return m.scan(st, page, func(l models.Listing) bool {
		return l.IsActive && f.match(l)
	})
}

// SellerListings returns a page of every listing owned by seller, including
// removed ones.
func (m *Marketplace) SellerListings(st store.Reader, seller string, page contract.Page) ([]models.Listing, error) {
	return m.scan(st, page, func(l models.Listing) bool {
		return l.Owner == seller
	})
}

func (m *Marketplace) scan(st store.Reader, page contract.Page, keep func(models.Listing) bool) ([]models.Listing, error) {
	count, err := m.count.Load(st)
	if err != nil {
		return nil, err
	}
	return contract.ScanRange(page, count, func(id uint64) (models.Listing, error) {
		l, err := m.listings.Load(st, id)
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			return l, fmt.Errorf("listing_count references missing listing %d: %w", id, contract.ErrCorrupt)
		}
		return l, err
	}, keep)
}
