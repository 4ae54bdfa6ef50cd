package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ledger node.
//
// Values are resolved in three layers: built-in defaults, then the YAML file
// named by LEDGER_CONFIG_FILE (if any), then environment variables.
type Config struct {
	Port        int               `yaml:"port"`
	Version     string            `yaml:"version"`
	Log         LogConfig         `yaml:"log"`
	Storage     StorageConfig     `yaml:"storage"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Auth        AuthConfig        `yaml:"auth"`
	Registry    RegistryConfig    `yaml:"registry"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Notify      NotifyConfig      `yaml:"notify"`

	// Genesis balances are minted once, when the store is first initialized.
	// Only settable from the YAML file.
	Genesis []GenesisBalance `yaml:"genesis"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// StorageConfig selects the keyspace backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "memory" or "pebble"
	DataDir string `yaml:"data_dir"`
	// Snapshot persists the memory backend to DataDir/ledger.json.
	Snapshot bool `yaml:"snapshot"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

type AuthConfig struct {
	// APIKeys maps an API key to the ledger address it acts as.
	APIKeys map[string]string `yaml:"api_keys"`
	// CallerHeader, when set, is trusted to carry an already-authenticated
	// caller address (e.g. injected by a gateway).
	CallerHeader string `yaml:"caller_header"`
	// TokenSecret enables HMAC-signed caller tokens (X-Caller-Token).
	TokenSecret string `yaml:"token_secret"`
	// RequireAuth rejects unauthenticated requests on every route instead of
	// only on mutating ones.
	RequireAuth bool `yaml:"require_auth"`
}

type RegistryConfig struct {
	// Admin is recorded as the registry instantiator.
	Admin string `yaml:"admin"`
	// Account receives funds attached to registry messages.
	Account string `yaml:"account"`
}

type MarketplaceConfig struct {
	Operator      string `yaml:"operator"`
	FeePercentage int    `yaml:"fee_percentage"`
	Denom         string `yaml:"denom"`
	// Account holds escrowed payments until they are settled.
	Account string `yaml:"account"`
}

// NotifyConfig lists the webhooks that receive committed ledger events.
type NotifyConfig struct {
	Webhooks  []WebhookConfig `yaml:"webhooks"`
	QueueSize int             `yaml:"queue_size"`
}

type WebhookConfig struct {
	URL     string   `yaml:"url"`
	Secret  string   `yaml:"secret"`
	Methods []string `yaml:"methods"`
}

type GenesisBalance struct {
	Address string `yaml:"address"`
	Denom   string `yaml:"denom"`
	Amount  string `yaml:"amount"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:    8080,
		Version: "0.1.0",
		Log:     LogConfig{Level: "info", Format: "console"},
		Storage: StorageConfig{
			Backend: "memory",
			DataDir: "data",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "agentoven-ledger",
		},
		Auth: AuthConfig{
			APIKeys: map[string]string{},
		},
		Registry: RegistryConfig{Admin: "ledger-admin", Account: "registry"},
		Marketplace: MarketplaceConfig{
			Operator:      "marketplace-operator",
			FeePercentage: 5,
			Denom:         "inj",
			Account:       "marketplace",
		},
	}
}

// Load reads the optional YAML file and environment variables on top of the
// defaults and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("LEDGER_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envInt("LEDGER_PORT", c.Port)
	c.Version = envStr("LEDGER_VERSION", c.Version)
	c.Log.Level = envStr("LEDGER_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envStr("LEDGER_LOG_FORMAT", c.Log.Format)

	c.Storage.Backend = envStr("LEDGER_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.DataDir = envStr("LEDGER_DATA_DIR", c.Storage.DataDir)
	c.Storage.Snapshot = envBool("LEDGER_STORAGE_SNAPSHOT", c.Storage.Snapshot)

	c.Telemetry.Enabled = envBool("OTEL_ENABLED", c.Telemetry.Enabled)
	c.Telemetry.OTLPEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = envStr("OTEL_SERVICE_NAME", c.Telemetry.ServiceName)

	// LEDGER_API_KEYS is a comma-separated list of key=address pairs.
	for _, pair := range strings.Split(os.Getenv("LEDGER_API_KEYS"), ",") {
		key, addr, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" || addr == "" {
			continue
		}
		if c.Auth.APIKeys == nil {
			c.Auth.APIKeys = map[string]string{}
		}
		c.Auth.APIKeys[key] = addr
	}
	c.Auth.CallerHeader = envStr("LEDGER_CALLER_HEADER", c.Auth.CallerHeader)
	c.Auth.TokenSecret = envStr("LEDGER_TOKEN_SECRET", c.Auth.TokenSecret)
	c.Auth.RequireAuth = envBool("LEDGER_REQUIRE_AUTH", c.Auth.RequireAuth)

	c.Registry.Admin = envStr("LEDGER_REGISTRY_ADMIN", c.Registry.Admin)
	c.Registry.Account = envStr("LEDGER_REGISTRY_ACCOUNT", c.Registry.Account)

	c.Marketplace.Operator = envStr("LEDGER_MARKETPLACE_OPERATOR", c.Marketplace.Operator)
	c.Marketplace.FeePercentage = envInt("LEDGER_MARKETPLACE_FEE", c.Marketplace.FeePercentage)
	c.Marketplace.Denom = envStr("LEDGER_MARKETPLACE_DENOM", c.Marketplace.Denom)
	c.Marketplace.Account = envStr("LEDGER_MARKETPLACE_ACCOUNT", c.Marketplace.Account)

	// A single webhook can be configured from the environment.
	if url := os.Getenv("LEDGER_WEBHOOK_URL"); url != "" {
		c.Notify.Webhooks = append(c.Notify.Webhooks, WebhookConfig{
			URL:    url,
			Secret: os.Getenv("LEDGER_WEBHOOK_SECRET"),
		})
	}
	c.Notify.QueueSize = envInt("LEDGER_WEBHOOK_QUEUE_SIZE", c.Notify.QueueSize)
}

// Validate rejects configurations the ledger cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Storage.Backend {
	case "memory", "pebble":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Marketplace.FeePercentage < 0 || c.Marketplace.FeePercentage > 100 {
		return fmt.Errorf("marketplace fee percentage %d outside 0..100", c.Marketplace.FeePercentage)
	}
	if c.Registry.Admin == "" || c.Registry.Account == "" {
		return fmt.Errorf("registry admin and account must be set")
	}
	if c.Marketplace.Operator == "" || c.Marketplace.Account == "" {
		return fmt.Errorf("marketplace operator and account must be set")
	}
	if c.Marketplace.Account == c.Marketplace.Operator || c.Marketplace.Account == c.Registry.Account {
		return fmt.Errorf("marketplace account must differ from the operator and the registry account")
	}
	for i, g := range c.Genesis {
		if g.Address == "" || g.Denom == "" {
			return fmt.Errorf("genesis[%d]: address and denom are required", i)
		}
	}
	for i, w := range c.Notify.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("notify.webhooks[%d]: url is required", i)
		}
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
