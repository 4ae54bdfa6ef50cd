package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/agentoven/ledger/pkg/contracts"
	pkgmw "github.com/agentoven/agentoven/ledger/pkg/middleware"
	"github.com/rs/zerolog/log"
)

// AuthMiddleware authenticates requests using the pluggable AuthProviderChain
// and stores the resulting Identity in context. The identity's subject is the
// caller address every mutation is attributed to.
type AuthMiddleware struct {
	chain       contracts.AuthProviderChain
	requireAuth bool
}

// NewAuthMiddleware creates the auth middleware.
//
// If requireAuth is true, unauthenticated requests to non-public paths are
// rejected, reads included. Otherwise anonymous requests may read and
// RequireCaller guards the mutating routes.
func NewAuthMiddleware(chain contracts.AuthProviderChain, requireAuth bool) *AuthMiddleware {
	return &AuthMiddleware{
		chain:       chain,
		requireAuth: requireAuth,
	}
}

// Handler returns the HTTP handler middleware that authenticates requests.
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Public paths: skip auth
		if isAuthPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := am.chain.Authenticate(r.Context(), r)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			unauthorized(w, "authentication_failed", err.Error())
			return
		}

		if identity == nil && am.requireAuth {
			unauthorized(w, "authentication_required",
				"This endpoint requires authentication. Set Authorization: Bearer <key>, X-API-Key, or X-Caller-Token header.")
			return
		}

		next.ServeHTTP(w, r.WithContext(pkgmw.SetIdentity(r.Context(), identity)))
	})
}

// RequireCaller rejects requests that carry no caller identity. Mount it on
// routes that change ledger state.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pkgmw.Caller(r.Context()) == "" {
			unauthorized(w, "caller_required", "this operation requires an authenticated caller")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="ledger"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": msg,
	})
}

// isAuthPublicPath returns true for paths that should skip authentication.
func isAuthPublicPath(path string) bool {
	switch path {
	case "/health", "/version", "/metrics":
		return true
	}
	return false
}
