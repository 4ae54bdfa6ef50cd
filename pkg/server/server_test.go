package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/agentoven/agentoven/ledger/internal/config"
	"github.com/agentoven/agentoven/ledger/pkg/server"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Genesis = []config.GenesisBalance{{Address: "inj1alice", Denom: "inj", Amount: "1000"}}
	return cfg
}

func TestNewWithConfig(t *testing.T) {
	srv, err := server.NewWithConfig(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("NewWithConfig() error = %v", err)
	}
	defer srv.Store.Close()
	defer srv.ShutdownFunc(context.Background())

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want %d", w.Code, http.StatusOK)
	}

	bal, err := srv.Ledger.Balances("inj1alice")
	if err != nil {
		t.Fatalf("Balances() error = %v", err)
	}
	if len(bal.Coins) != 1 || bal.Coins[0].Amount.String() != "1000" {
		t.Errorf("genesis balance = %+v, want 1000inj", bal.Coins)
	}
}

func TestPebbleBackendPersists(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "pebble"
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "db")

	srv, err := server.NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() error = %v", err)
	}
	if err := srv.Store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopening must not mint genesis a second time.
	srv, err = server.NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer srv.Store.Close()
	bal, err := srv.Ledger.Balances("inj1alice")
	if err != nil {
		t.Fatalf("Balances() error = %v", err)
	}
	if len(bal.Coins) != 1 || bal.Coins[0].Amount.String() != "1000" {
		t.Errorf("balance after reopen = %+v, want 1000inj", bal.Coins)
	}
}

func TestLedgerOptionsRejectsBadGenesis(t *testing.T) {
	cfg := config.Default()
	cfg.Genesis = []config.GenesisBalance{{Address: "inj1alice", Denom: "inj", Amount: "lots"}}
	if _, err := server.LedgerOptions(cfg); err == nil {
		t.Fatal("LedgerOptions() error = nil, want parse error")
	}
}

func TestNewAuthChainOrder(t *testing.T) {
	chain := server.NewAuthChain(config.AuthConfig{})
	got := chain.ListProviders()
	want := []string{"apikey", "token", "header"}
	if len(got) != len(want) {
		t.Fatalf("ListProviders() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("provider[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
