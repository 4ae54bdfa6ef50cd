package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentoven/agentoven/ledger/internal/api/middleware"
	"github.com/agentoven/agentoven/ledger/internal/auth"
	pkgmw "github.com/agentoven/agentoven/ledger/pkg/middleware"
)

func newChain() *auth.ProviderChain {
	chain := auth.NewProviderChain()
	chain.RegisterProvider(auth.NewAPIKeyProvider(map[string]string{"valid-key": "inj1alice"}))
	return chain
}

// echoCaller writes the caller address resolved by the middleware.
var echoCaller = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(pkgmw.Caller(r.Context())))
})

func serve(h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_SetsCaller(t *testing.T) {
	h := middleware.NewAuthMiddleware(newChain(), false).Handler(echoCaller)

	w := serve(h, "/api/v1/registry/agents", map[string]string{"Authorization": "Bearer valid-key"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "inj1alice" {
		t.Errorf("caller = %q, want inj1alice", got)
	}
}

func TestAuthMiddleware_InvalidKey(t *testing.T) {
	h := middleware.NewAuthMiddleware(newChain(), false).Handler(echoCaller)

	w := serve(h, "/api/v1/registry/agents", map[string]string{"X-API-Key": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_AnonymousAllowedUnlessRequired(t *testing.T) {
	open := middleware.NewAuthMiddleware(newChain(), false).Handler(echoCaller)
	if w := serve(open, "/api/v1/registry/agents", nil); w.Code != http.StatusOK {
		t.Errorf("anonymous read: status = %d, want %d", w.Code, http.StatusOK)
	}

	strict := middleware.NewAuthMiddleware(newChain(), true).Handler(echoCaller)
	if w := serve(strict, "/api/v1/registry/agents", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous with require_auth: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_PublicPaths(t *testing.T) {
	strict := middleware.NewAuthMiddleware(newChain(), true).Handler(echoCaller)

	for _, path := range []string{"/health", "/version", "/metrics"} {
		// Invalid credentials are ignored on public paths.
		w := serve(strict, path, map[string]string{"X-API-Key": "wrong"})
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func TestRequireCaller(t *testing.T) {
	h := middleware.NewAuthMiddleware(newChain(), false).Handler(middleware.RequireCaller(echoCaller))

	if w := serve(h, "/api/v1/execute", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if w := serve(h, "/api/v1/execute", map[string]string{"X-API-Key": "valid-key"}); w.Code != http.StatusOK {
		t.Errorf("authenticated: status = %d, want %d", w.Code, http.StatusOK)
	}
}
