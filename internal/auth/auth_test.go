package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newRequest(headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/registry/agents", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestAPIKeyProvider_Disabled(t *testing.T) {
	p := NewAPIKeyProvider(nil)
	if p.Enabled() {
		t.Error("Expected provider to be disabled without keys")
	}
}

func TestAPIKeyProvider_ResolvesAddress(t *testing.T) {
	p := NewAPIKeyProvider(map[string]string{"key-1": "inj1alice", "key-2": "inj1bob"})

	id, err := p.Authenticate(context.Background(), newRequest(map[string]string{"Authorization": "Bearer key-1"}))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id == nil || id.Subject != "inj1alice" {
		t.Fatalf("Bearer key: identity = %+v, want subject inj1alice", id)
	}

	id, err = p.Authenticate(context.Background(), newRequest(map[string]string{"X-API-Key": "key-2"}))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id == nil || id.Subject != "inj1bob" || id.Provider != "apikey" {
		t.Fatalf("X-API-Key: identity = %+v, want subject inj1bob", id)
	}
}

func TestAPIKeyProvider_UnknownKeyRejected(t *testing.T) {
	p := NewAPIKeyProvider(map[string]string{"key-1": "inj1alice"})

	_, err := p.Authenticate(context.Background(), newRequest(map[string]string{"X-API-Key": "nope"}))
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("Authenticate() error = %v, want ErrInvalidAPIKey", err)
	}
}

func TestAPIKeyProvider_NoKeyPassesThrough(t *testing.T) {
	p := NewAPIKeyProvider(map[string]string{"key-1": "inj1alice"})

	id, err := p.Authenticate(context.Background(), newRequest(nil))
	if err != nil || id != nil {
		t.Fatalf("Authenticate() = (%+v, %v), want (nil, nil)", id, err)
	}
}

func TestAPIKeyProvider_AddRemoveKey(t *testing.T) {
	p := NewAPIKeyProvider(nil)
	p.AddKey("fresh", "inj1carol")
	if !p.Enabled() {
		t.Fatal("Expected provider to be enabled after AddKey")
	}
	req := newRequest(map[string]string{"X-API-Key": "fresh"})
	if id, err := p.Authenticate(context.Background(), req); err != nil || id.Subject != "inj1carol" {
		t.Fatalf("Authenticate() = (%+v, %v)", id, err)
	}

	p.RemoveKey("fresh")
	if p.Enabled() {
		t.Error("Expected provider to be disabled after removing its only key")
	}
}

func TestTokenProvider_RoundTrip(t *testing.T) {
	p := NewTokenProvider("s3cret")
	token, err := GenerateToken([]byte("s3cret"), "inj1alice", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	id, err := p.Authenticate(context.Background(), newRequest(map[string]string{TokenHeader: token}))
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.Subject != "inj1alice" || id.Provider != "token" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestTokenProvider_Rejects(t *testing.T) {
	p := NewTokenProvider("s3cret")
	good, _ := GenerateToken([]byte("s3cret"), "inj1alice", time.Hour)
	forged, _ := GenerateToken([]byte("other"), "inj1alice", time.Hour)
	expired, _ := GenerateToken([]byte("s3cret"), "inj1alice", time.Hour)
	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", forged},
		{"expired", expired},
		{"no separator", "abc"},
		{"bad signature encoding", strings.Split(good, ".")[0] + ".!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Authenticate(context.Background(), newRequest(map[string]string{TokenHeader: tt.token}))
			if err == nil {
				t.Fatal("Authenticate() error = nil, want rejection")
			}
		})
	}
}

func TestTokenProvider_DisabledWithoutSecret(t *testing.T) {
	if NewTokenProvider("").Enabled() {
		t.Error("Expected provider to be disabled without a secret")
	}
}

func TestHeaderProvider(t *testing.T) {
	p := NewHeaderProvider("X-Caller")
	id, err := p.Authenticate(context.Background(), newRequest(map[string]string{"X-Caller": " inj1dave "}))
	if err != nil || id == nil || id.Subject != "inj1dave" {
		t.Fatalf("Authenticate() = (%+v, %v), want subject inj1dave", id, err)
	}
	if NewHeaderProvider("").Enabled() {
		t.Error("Expected provider to be disabled without a header name")
	}
}

func TestProviderChain_Order(t *testing.T) {
	chain := NewProviderChain()
	chain.RegisterProvider(NewAPIKeyProvider(map[string]string{"k": "inj1key"}))
	chain.RegisterProvider(NewTokenProvider(""))
	chain.RegisterProvider(NewHeaderProvider("X-Caller"))

	if got := chain.ListProviders(); len(got) != 3 || got[0] != "apikey" || got[2] != "header" {
		t.Fatalf("ListProviders() = %v", got)
	}

	// API key wins over the header.
	id, err := chain.Authenticate(context.Background(), newRequest(map[string]string{"X-API-Key": "k", "X-Caller": "inj1hdr"}))
	if err != nil || id.Subject != "inj1key" {
		t.Fatalf("Authenticate() = (%+v, %v), want inj1key", id, err)
	}

	// A bad key stops the walk even though the header is present.
	if _, err := chain.Authenticate(context.Background(), newRequest(map[string]string{"X-API-Key": "bad", "X-Caller": "inj1hdr"})); err == nil {
		t.Fatal("Expected rejection for an invalid key")
	}

	// No credentials at all is anonymous.
	id, err = chain.Authenticate(context.Background(), newRequest(nil))
	if err != nil || id != nil {
		t.Fatalf("Authenticate() = (%+v, %v), want anonymous", id, err)
	}
}
