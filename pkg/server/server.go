// Package server provides the public entry point for assembling a ledger
// node: configuration, telemetry, storage, the ledger host, authentication
// and the HTTP router.
//
// This package exists in pkg/ (not internal/) so that other programs can
// embed the node and wrap its handler with their own middleware.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/agentoven/agentoven/ledger/internal/api"
	"github.com/agentoven/agentoven/ledger/internal/api/handlers"
	"github.com/agentoven/agentoven/ledger/internal/api/middleware"
	"github.com/agentoven/agentoven/ledger/internal/auth"
	"github.com/agentoven/agentoven/ledger/internal/config"
	"github.com/agentoven/agentoven/ledger/internal/ledger"
	"github.com/agentoven/agentoven/ledger/internal/notify"
	"github.com/agentoven/agentoven/ledger/internal/store"
	"github.com/agentoven/agentoven/ledger/internal/telemetry"
	"github.com/agentoven/agentoven/ledger/pkg/contracts"
	"github.com/agentoven/agentoven/ledger/pkg/models"

	"github.com/rs/zerolog/log"
)

// Server holds an initialized ledger node.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Ledger executes messages and answers queries.
	Ledger contracts.LedgerService

	// Store is the keyspace backend. Close it after the HTTP server stops.
	Store store.KV

	// Config is the resolved configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New loads the configuration and initializes a ready Server.
func New(ctx context.Context) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes a Server with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	kv, err := OpenStore(cfg.Storage)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	opts, err := LedgerOptions(cfg)
	if err != nil {
		kv.Close()
		_ = shutdown(ctx)
		return nil, err
	}
	l, err := ledger.New(kv, opts)
	if err != nil {
		kv.Close()
		_ = shutdown(ctx)
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	log.Info().
		Str("operator", opts.MarketplaceOperator).
		Uint32("fee_percentage", opts.FeePercentage).
		Str("denom", opts.Denom).
		Msg("✅ Ledger initialized")

	var svc contracts.LedgerService = l
	if len(cfg.Notify.Webhooks) > 0 {
		notifier := notify.NewService(Webhooks(cfg.Notify), cfg.Notify.QueueSize)
		svc = notify.Wrap(l, notifier)
		flushTelemetry := shutdown
		shutdown = func(ctx context.Context) error {
			if err := notifier.Close(ctx); err != nil {
				log.Warn().Err(err).Msg("Undelivered webhook events dropped")
			}
			return flushTelemetry(ctx)
		}
		log.Info().Int("webhooks", len(cfg.Notify.Webhooks)).Msg("✅ Event webhooks enabled")
	}

	chain := NewAuthChain(cfg.Auth)
	h := handlers.New(svc)
	router := api.NewRouter(cfg, h, middleware.NewAuthMiddleware(chain, cfg.Auth.RequireAuth))

	return &Server{
		Handler:      router,
		Ledger:       svc,
		Store:        kv,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// Webhooks converts the notify configuration into subscribers.
func Webhooks(cfg config.NotifyConfig) []notify.Webhook {
	hooks := make([]notify.Webhook, 0, len(cfg.Webhooks))
	for _, w := range cfg.Webhooks {
		hooks = append(hooks, notify.Webhook{URL: w.URL, Secret: w.Secret, Methods: w.Methods})
	}
	return hooks
}

// OpenStore opens the configured keyspace backend.
func OpenStore(cfg config.StorageConfig) (store.KV, error) {
	switch cfg.Backend {
	case "pebble":
		kv, err := store.OpenPebble(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open pebble store: %w", err)
		}
		log.Info().Str("path", cfg.DataDir).Msg("✅ Pebble store opened")
		return kv, nil
	default:
		var snapshot string
		if cfg.Snapshot {
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			snapshot = filepath.Join(cfg.DataDir, "ledger.json")
		}
		log.Info().Str("snapshot", snapshot).Msg("✅ In-memory store initialized")
		return store.NewMemoryStore(snapshot), nil
	}
}

// LedgerOptions converts the configuration into ledger options, parsing the
// genesis balances.
func LedgerOptions(cfg *config.Config) (ledger.Options, error) {
	opts := ledger.Options{
		RegistryAdmin:       cfg.Registry.Admin,
		RegistryAccount:     cfg.Registry.Account,
		MarketplaceOperator: cfg.Marketplace.Operator,
		MarketplaceAccount:  cfg.Marketplace.Account,
		FeePercentage:       uint32(cfg.Marketplace.FeePercentage),
		Denom:               cfg.Marketplace.Denom,
	}
	for i, g := range cfg.Genesis {
		amount, err := models.ParseAmount(g.Amount)
		if err != nil {
			return opts, fmt.Errorf("genesis[%d]: %w", i, err)
		}
		opts.Genesis = append(opts.Genesis, ledger.Allocation{
			Address: g.Address,
			Coin:    models.Coin{Denom: g.Denom, Amount: amount},
		})
	}
	return opts, nil
}

// NewAuthChain builds the provider chain: API keys first, then signed
// caller tokens, then the trusted gateway header.
func NewAuthChain(cfg config.AuthConfig) *auth.ProviderChain {
	chain := auth.NewProviderChain()
	chain.RegisterProvider(auth.NewAPIKeyProvider(cfg.APIKeys))
	chain.RegisterProvider(auth.NewTokenProvider(cfg.TokenSecret))
	chain.RegisterProvider(auth.NewHeaderProvider(cfg.CallerHeader))
	return chain
}
