package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/agentoven/agentoven/ledger/pkg/contracts"
)

// HeaderProvider trusts a request header to carry the caller address. Only
// enable it when every request passes through a gateway that authenticates
// the caller and overwrites the header.
type HeaderProvider struct {
	header string
}

// NewHeaderProvider creates a provider reading header. An empty header
// disables it.
func NewHeaderProvider(header string) *HeaderProvider {
	return &HeaderProvider{header: header}
}

func (p *HeaderProvider) Name() string  { return "header" }
func (p *HeaderProvider) Enabled() bool { return p.header != "" }

func (p *HeaderProvider) Authenticate(_ context.Context, r *http.Request) (*contracts.Identity, error) {
	addr := strings.TrimSpace(r.Header.Get(p.header))
	if addr == "" {
		return nil, nil
	}
	return &contracts.Identity{Subject: addr, Provider: "header", DisplayName: addr}, nil
}
