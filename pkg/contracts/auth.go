// Package contracts: authentication interfaces for the pluggable auth layer.
//
// The ledger core never verifies signatures or credentials itself: it receives
// an already-authenticated caller address. These types are the boundary
// between whatever resolves that address (API keys, signed caller tokens or
// a trusted gateway header) and the handlers that submit messages on the caller's behalf.
package contracts

import (
	"context"
	"net/http"
)

// ── Identity ────────────────────────────────────────────────

// Identity is an authenticated caller. Produced by an AuthProvider, consumed
// by the handlers that submit ledger messages.
type Identity struct {
	// Subject is the ledger address the caller acts as. It becomes the owner
	// of every record the caller creates.
	Subject string `json:"subject"`

	// Provider identifies which auth provider authenticated this identity.
	// Values: "apikey", "token", "header"
	Provider string `json:"provider"`

	// DisplayName is a human-readable name, for logs only.
	DisplayName string `json:"display_name,omitempty"`
}

// ── AuthProvider ────────────────────────────────────────────

// AuthProvider authenticates an HTTP request and returns an Identity.
//
// The chain pattern:
//   - Return (*Identity, nil) → authenticated, stop chain
//   - Return (nil, nil) → this provider doesn't handle this request, try next
//   - Return (nil, error) → authentication was attempted but failed, reject
type AuthProvider interface {
	// Name returns the provider identifier (e.g. "apikey", "header").
	Name() string

	// Authenticate inspects the request and returns an Identity.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	// Enabled returns whether this provider is configured and active.
	Enabled() bool
}

// ── AuthProviderChain ───────────────────────────────────────

// AuthProviderChain tries providers in priority order until one returns an Identity.
type AuthProviderChain interface {
	// Authenticate walks the chain of providers in order.
	// Returns the first successful Identity, or (nil, nil) if no provider matched.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	// RegisterProvider adds a provider to the end of the chain.
	// Providers are tried in registration order.
	RegisterProvider(provider AuthProvider)
}
