package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agentoven/agentoven/ledger/pkg/contracts"
)

// TokenHeader carries a signed caller token.
const TokenHeader = "X-Caller-Token"

// TokenProvider validates HMAC-signed caller tokens. A token binds a ledger
// address to an expiry and is issued out of band by whoever holds the secret.
//
// Token format: base64url(JSON payload) + "." + base64url(HMAC-SHA256 signature)
// Payload: {"sub": "inj1...", "exp": 1234567890}
type TokenProvider struct {
	secret []byte
	now    func() time.Time
}

type tokenPayload struct {
	Subject string `json:"sub"`
	Exp     int64  `json:"exp"`
}

// NewTokenProvider creates a provider. An empty secret disables it.
func NewTokenProvider(secret string) *TokenProvider {
	return &TokenProvider{secret: []byte(secret), now: time.Now}
}

func (p *TokenProvider) Name() string  { return "token" }
func (p *TokenProvider) Enabled() bool { return len(p.secret) > 0 }

// Authenticate validates the token in the X-Caller-Token header.
// Returns (nil, nil) if no token is present.
func (p *TokenProvider) Authenticate(_ context.Context, r *http.Request) (*contracts.Identity, error) {
	token := r.Header.Get(TokenHeader)
	if token == "" {
		return nil, nil
	}

	payload, err := p.validate(token)
	if err != nil {
		return nil, fmt.Errorf("invalid caller token: %w", err)
	}
	return &contracts.Identity{
		Subject:     payload.Subject,
		Provider:    "token",
		DisplayName: payload.Subject,
	}, nil
}

func (p *TokenProvider) validate(token string) (*tokenPayload, error) {
	i := strings.LastIndexByte(token, '.')
	if i < 0 {
		return nil, fmt.Errorf("malformed token: expected payload.signature")
	}
	payloadB64, sigB64 := token[:i], token[i+1:]

	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !hmac.Equal(sig, sign(p.secret, payloadB64)) {
		return nil, fmt.Errorf("signature mismatch")
	}

	raw, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("invalid payload encoding: %w", err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid payload JSON: %w", err)
	}

	if payload.Exp > 0 && p.now().Unix() > payload.Exp {
		return nil, fmt.Errorf("token expired")
	}
	if payload.Subject == "" {
		return nil, fmt.Errorf("missing subject")
	}
	return &payload, nil
}

func sign(secret []byte, payloadB64 string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payloadB64))
	return mac.Sum(nil)
}

// GenerateToken creates a signed caller token for addr valid for ttl.
// A zero ttl produces a token that never expires.
func GenerateToken(secret []byte, addr string, ttl time.Duration) (string, error) {
	payload := tokenPayload{Subject: addr}
	if ttl > 0 {
		payload.Exp = time.Now().Add(ttl).Unix()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(raw)
	return payloadB64 + "." + base64.RawURLEncoding.EncodeToString(sign(secret, payloadB64)), nil
}
