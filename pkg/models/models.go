// Package models holds the domain types shared by the registry, the
// marketplace, the host ledger and the HTTP surface.
package models

import "strconv"

// ── Registry ────────────────────────────────────────────────

// Agent is a record in the agent registry. ID, Owner and CreatedAt never
// change after registration; UpdatedAt never decreases.
type Agent struct {
	ID            uint64 `json:"id"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Configuration string `json:"configuration"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     uint64 `json:"created_at"`
	UpdatedAt     uint64 `json:"updated_at"`
}

// AgentPatch is a sparse update: nil fields are left untouched.
type AgentPatch struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	Configuration *string `json:"configuration,omitempty"`
}

// RegistryConfig is written once when the registry is instantiated.
type RegistryConfig struct {
	Owner string `json:"owner"`
}

// ── Marketplace ─────────────────────────────────────────────

// Listing is a record in the marketplace. Removed listings stay in the
// store with IsActive=false.
type Listing struct {
	ID          uint64 `json:"id"`
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       Amount `json:"price"`
	Category    string `json:"category"`
	IsActive    bool   `json:"is_active"`
}

// ListingPatch is a sparse update: nil fields are left untouched.
type ListingPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *Amount `json:"price,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// MarketplaceConfig is fixed at instantiation; there is no update path.
type MarketplaceConfig struct {
	Operator      string `json:"operator"`
	FeePercentage uint32 `json:"fee_percentage"`
	Denom         string `json:"denom"`
}

// Receipt describes a settled purchase.
type Receipt struct {
	ID           string `json:"id"`
	ListingID    uint64 `json:"listing_id"`
	Buyer        string `json:"buyer"`
	Seller       string `json:"seller"`
	Operator     string `json:"operator"`
	Denom        string `json:"denom"`
	Price        Amount `json:"price"`
	Fee          Amount `json:"fee"`
	SellerAmount Amount `json:"seller_amount"`
	Paid         Amount `json:"paid"`
	// Excess is the part of Paid above Price. It is not refunded.
	Excess Amount `json:"excess"`
}

// ── Value transfer ──────────────────────────────────────────

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string `json:"denom"`
	Amount Amount `json:"amount"`
}

// Transfer instructs the host to move Amount of Denom to Recipient.
type Transfer struct {
	Recipient string `json:"recipient"`
	Denom     string `json:"denom"`
	Amount    Amount `json:"amount"`
}

// ── Events ──────────────────────────────────────────────────

// Attribute is a single key/value pair attached to an Event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is emitted on every successful mutation.
type Event struct {
	Method     string      `json:"method"`
	Attributes []Attribute `json:"attributes"`
}

// NewEvent starts an event for method.
func NewEvent(method string) Event {
	return Event{Method: method, Attributes: []Attribute{{Key: "method", Value: method}}}
}

// With appends an attribute and returns the event.
func (e Event) With(key, value string) Event {
	e.Attributes = append(e.Attributes, Attribute{Key: key, Value: value})
	return e
}

// WithID appends an unsigned identifier attribute.
func (e Event) WithID(key string, id uint64) Event {
	return e.With(key, strconv.FormatUint(id, 10))
}

// Get returns the value of the first attribute named key.
func (e Event) Get(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// ── Pages ───────────────────────────────────────────────────

// AgentsPage is one page of a registry listing.
type AgentsPage struct {
	Agents []Agent `json:"agents"`
}

// ListingsPage is one page of a marketplace listing.
type ListingsPage struct {
	Listings []Listing `json:"listings"`
}

// Balances is the bank view of one account.
type Balances struct {
	Address string `json:"address"`
	Coins   []Coin `json:"coins"`
}
