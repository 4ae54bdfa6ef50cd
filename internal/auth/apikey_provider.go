package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/agentoven/agentoven/ledger/pkg/contracts"
)

// ErrInvalidAPIKey is returned when a request carries an unknown API key.
var ErrInvalidAPIKey = errors.New("invalid API key")

// APIKeyProvider maps static API keys to ledger addresses. Keys are read from
// the Authorization: Bearer <key> or X-API-Key headers.
type APIKeyProvider struct {
	mu   sync.RWMutex
	keys map[string]string // key → address
}

// NewAPIKeyProvider creates a provider from a key → address map.
func NewAPIKeyProvider(keys map[string]string) *APIKeyProvider {
	p := &APIKeyProvider{keys: make(map[string]string, len(keys))}
	for k, addr := range keys {
		if k != "" && addr != "" {
			p.keys[k] = addr
		}
	}
	return p
}

func (p *APIKeyProvider) Name() string { return "apikey" }

func (p *APIKeyProvider) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.keys) > 0
}

// Authenticate resolves the API key to its address.
// Returns (nil, nil) if no API key is present (let next provider try).
// Returns (nil, error) if an API key is present but unknown.
func (p *APIKeyProvider) Authenticate(_ context.Context, r *http.Request) (*contracts.Identity, error) {
	apiKey := extractAPIKeyFromRequest(r)
	if apiKey == "" {
		return nil, nil
	}

	addr, ok := p.lookup(apiKey)
	if !ok {
		return nil, ErrInvalidAPIKey
	}
	return &contracts.Identity{
		Subject:     addr,
		Provider:    "apikey",
		DisplayName: addr,
	}, nil
}

// lookup compares against every key in constant time per key.
func (p *APIKeyProvider) lookup(candidate string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var found string
	for key, addr := range p.keys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			found = addr
		}
	}
	return found, found != ""
}

// AddKey binds a new API key at runtime.
func (p *APIKeyProvider) AddKey(key, addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[key] = addr
}

// RemoveKey revokes an API key at runtime.
func (p *APIKeyProvider) RemoveKey(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, key)
}

func extractAPIKeyFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}
