// Package ledger hosts the registry and marketplace engines. It serializes
// every state-changing message behind a single writer lock, escrows the
// funds attached to a message, dispatches it to its engine, executes the
// returned transfers and commits everything as one batch.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentoven/agentoven/ledger/internal/bank"
	"github.com/agentoven/agentoven/ledger/internal/contract"
	"github.com/agentoven/agentoven/ledger/internal/marketplace"
	"github.com/agentoven/agentoven/ledger/internal/metrics"
	"github.com/agentoven/agentoven/ledger/internal/registry"
	"github.com/agentoven/agentoven/ledger/internal/store"
	"github.com/agentoven/agentoven/ledger/internal/telemetry"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// ErrNoCaller is returned when a message arrives without a caller identity.
var ErrNoCaller = errors.New("caller identity required")

// Keyspace namespaces, one per component.
const (
	nsRegistry    = "registry"
	nsMarketplace = "marketplace"
	nsBank        = "bank"
)

// Clock returns the block time of the next request.
type Clock func() time.Time

// Allocation is a genesis balance.
type Allocation struct {
	Address string
	Coin    models.Coin
}

// Options configure a Ledger. Registry and marketplace parameters apply only
// the first time the store is initialized.
type Options struct {
	RegistryAdmin   string
	RegistryAccount string

	MarketplaceOperator string
	MarketplaceAccount  string
	FeePercentage       uint32
	Denom               string

	Genesis []Allocation

	// Clock defaults to time.Now.
	Clock Clock
}

// Result is what a successful Execute returns.
type Result struct {
	Method    string            `json:"method"`
	Event     models.Event      `json:"event"`
	ID        uint64            `json:"id,omitempty"`
	Transfers []models.Transfer `json:"transfers,omitempty"`
	Receipt   *models.Receipt   `json:"receipt,omitempty"`
}

// Ledger is the host. Execute is safe for concurrent use; messages are
// applied one at a time. Queries read committed state without the lock.
type Ledger struct {
	mu    sync.Mutex
	kv    store.KV
	clock Clock

	registry *registry.Registry
	market   *marketplace.Marketplace
	bank     *bank.Bank

	accounts map[Target]string
}

// New opens a ledger over kv, instantiating the engines and minting the
// genesis balances if the store is empty.
func New(kv store.KV, opts Options) (*Ledger, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	l := &Ledger{
		kv:       kv,
		clock:    opts.Clock,
		registry: registry.New(),
		market:   marketplace.New(),
		bank:     bank.New(),
		accounts: map[Target]string{
			TargetRegistry:    opts.RegistryAccount,
			TargetMarketplace: opts.MarketplaceAccount,
		},
	}
	if err := l.init(opts); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) init(opts Options) error {
	txn := store.NewTxn(l.kv)
	defer txn.Discard()

	reg := store.Prefix(txn, nsRegistry)
	ok, err := l.registry.Instantiated(reg)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := l.registry.Instantiate(reg, contract.Info{Sender: opts.RegistryAdmin}); err != nil {
			return fmt.Errorf("instantiate registry: %w", err)
		}
		bk := store.Prefix(txn, nsBank)
		for _, g := range opts.Genesis {
			if err := l.bank.Mint(bk, g.Address, g.Coin); err != nil {
				return fmt.Errorf("genesis balance for %s: %w", g.Address, err)
			}
		}
		log.Info().
			Str("admin", opts.RegistryAdmin).
			Int("genesis_accounts", len(opts.Genesis)).
			Msg("📒 Registry instantiated")
	}

	mkt := store.Prefix(txn, nsMarketplace)
	ok, err = l.market.Instantiated(mkt)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := l.market.Instantiate(mkt, contract.Info{Sender: opts.MarketplaceOperator}, opts.FeePercentage, opts.Denom); err != nil {
			return fmt.Errorf("instantiate marketplace: %w", err)
		}
		log.Info().
			Str("operator", opts.MarketplaceOperator).
			Uint32("fee_percentage", opts.FeePercentage).
			Msg("🛒 Marketplace instantiated")
	} else {
		cfg, err := l.market.Config(mkt)
		if err != nil {
			return err
		}
		if cfg.FeePercentage != opts.FeePercentage || cfg.Operator != opts.MarketplaceOperator {
			log.Warn().
				Uint32("stored_fee", cfg.FeePercentage).
				Uint32("configured_fee", opts.FeePercentage).
				Str("stored_operator", cfg.Operator).
				Msg("Marketplace parameters are fixed at instantiation; configured values ignored")
		}
	}

	return txn.Commit()
}

// Execute applies msg on behalf of caller with funds attached. Either every
// write of the request (escrow, engine state, transfers) is committed or
// none is.
func (l *Ledger) Execute(ctx context.Context, caller string, funds []models.Coin, msg Msg) (*Result, error) {
	if msg == nil {
		return nil, ErrUnknownMessage
	}
	method := msg.Method()

	_, span := telemetry.Tracer().Start(ctx, "ledger.execute",
		trace.WithAttributes(
			attribute.String("ledger.method", method),
			attribute.String("ledger.caller", caller),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := l.execute(caller, funds, msg)
	metrics.ExecuteDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		kind := ErrorKind(err)
		metrics.MessagesExecuted.WithLabelValues(method, kind).Inc()
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("ledger.error_kind", kind))

		level := zerolog.DebugLevel
		if kind == "persistence" || kind == "corrupt" || kind == "internal" {
			level = zerolog.ErrorLevel
		}
		log.WithLevel(level).
			Str("method", method).
			Str("caller", caller).
			Str("kind", kind).
			Err(err).
			Msg("Message rejected")
		return nil, err
	}

	metrics.MessagesExecuted.WithLabelValues(method, "ok").Inc()
	l.observe(res)

	ev := log.Info().Str("caller", caller)
	for _, a := range res.Event.Attributes {
		ev = ev.Str(a.Key, a.Value)
	}
	ev.Msg("Message executed")
	return res, nil
}

func (l *Ledger) execute(caller string, funds []models.Coin, msg Msg) (*Result, error) {
	if caller == "" {
		return nil, ErrNoCaller
	}
	account, ok := l.accounts[msg.Target()]
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	txn := store.NewTxn(l.kv)
	defer txn.Discard()
	bk := store.Prefix(txn, nsBank)

	for _, c := range funds {
		if c.Denom == "" {
			return nil, fmt.Errorf("%w: coin without denom", ErrInvalidFunds)
		}
		if err := l.bank.Send(bk, caller, account, c); err != nil {
			return nil, fmt.Errorf("escrow %s%s: %w", c.Amount, c.Denom, err)
		}
	}

	env := contract.Env{BlockTime: l.clock()}
	info := contract.Info{Sender: caller, Funds: funds}
	resp, err := l.dispatch(txn, env, info, msg)
	if err != nil {
		return nil, err
	}

	if err := l.bank.Apply(bk, account, resp.Transfers); err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}

	return &Result{
		Method:    msg.Method(),
		Event:     resp.Event,
		ID:        resp.ID,
		Transfers: resp.Transfers,
		Receipt:   resp.Receipt,
	}, nil
}

// dispatch routes msg to its engine. Every variant has exactly one arm.
func (l *Ledger) dispatch(txn *store.Txn, env contract.Env, info contract.Info, msg Msg) (*contract.Response, error) {
	reg := store.Prefix(txn, nsRegistry)
	mkt := store.Prefix(txn, nsMarketplace)

	switch m := msg.(type) {
	case RegisterAgent:
		return l.registry.Register(reg, env, info, m.Name, m.Description, m.Configuration)
	case UpdateAgent:
		return l.registry.Update(reg, env, info, m.AgentID, m.AgentPatch)
	case ActivateAgent:
		return l.registry.Activate(reg, env, info, m.AgentID)
	case DeactivateAgent:
		return l.registry.Deactivate(reg, env, info, m.AgentID)

	case ListAgent:
		if err := checkPrice(m.Price); err != nil {
			return nil, err
		}
		return l.market.List(mkt, info, m.Name, m.Description, m.Price, m.Category)
	case UpdateListing:
		if m.Price != nil {
			if err := checkPrice(*m.Price); err != nil {
				return nil, err
			}
		}
		return l.market.Update(mkt, info, m.AgentID, m.ListingPatch)
	case RemoveListing:
		return l.market.Remove(mkt, info, m.AgentID)
	case PurchaseListing:
		return l.market.Purchase(mkt, info, m.AgentID)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

// checkPrice enforces the 128-bit price range of listings.
func checkPrice(a models.Amount) error {
	if a.Uint256().BitLen() > models.MaxAmountBits {
		return models.ErrAmountOverflow
	}
	return nil
}

func (l *Ledger) observe(res *Result) {
	switch res.Method {
	case RegisterAgent{}.Method():
		metrics.RecordsCreated.WithLabelValues("agent").Inc()
	case ListAgent{}.Method():
		metrics.RecordsCreated.WithLabelValues("listing").Inc()
	}
	if r := res.Receipt; r != nil {
		metrics.SettledVolume.WithLabelValues(r.Denom).Add(r.Price.Float64())
		metrics.FeesCollected.WithLabelValues(r.Denom).Add(r.Fee.Float64())
	}
}

// Ping checks the underlying store.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.kv.Ping(ctx)
}
