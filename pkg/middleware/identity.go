// Package middleware provides shared context helpers for the ledger node.
//
// This package lives in pkg/ (not internal/) so that programs embedding the
// server can read the authenticated caller in their own middleware.
package middleware

import (
	"context"

	"github.com/agentoven/agentoven/ledger/pkg/contracts"
)

type contextKey string

const identityKey contextKey = "identity"

// SetIdentity stores the authenticated Identity in the context.
// Called by the auth middleware after successful authentication.
func SetIdentity(ctx context.Context, identity *contracts.Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity retrieves the authenticated Identity from the context.
// Returns nil if no identity is set (anonymous request).
func GetIdentity(ctx context.Context) *contracts.Identity {
	if v, ok := ctx.Value(identityKey).(*contracts.Identity); ok {
		return v
	}
	return nil
}

// Caller returns the ledger address of the authenticated caller, or "" for
// an anonymous request.
func Caller(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.Subject
	}
	return ""
}
