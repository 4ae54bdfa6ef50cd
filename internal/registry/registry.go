// Package registry implements the agent registry: owner-scoped records with
// an activate/deactivate lifecycle, monotonic identifiers, and an
// append-only per-owner index.
package registry

import (
	"errors"
	"fmt"

	"github.com/agentoven/agentoven/ledger/internal/contract"
	"github.com/agentoven/agentoven/ledger/internal/store"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// Method names reported in events.
const (
	MethodInstantiate = "instantiate"
	MethodRegister    = "register_agent"
	MethodUpdate      = "update_agent"
	MethodActivate    = "activate_agent"
	MethodDeactivate  = "deactivate_agent"
)

// Registry owns the registry keyspace layout. It keeps no state of its own;
// every operation works on the store view it is given.
type Registry struct {
	config store.Item[models.RegistryConfig]
	count  store.Item[uint64]
	agents store.Map[uint64, models.Agent]
	owners store.Map[string, []uint64]
}

// New declares the registry keyspace.
func New() *Registry {
	return &Registry{
		config: store.NewItem[models.RegistryConfig]("config"),
		count:  store.NewItem[uint64]("agent_count"),
		agents: store.NewU64Map[models.Agent]("agents"),
		owners: store.NewStringMap[[]uint64]("owner_agents"),
	}
}

// Instantiated reports whether Instantiate has run against st.
func (r *Registry) Instantiated(st store.Reader) (bool, error) {
	_, ok, err := r.config.MayLoad(st)
	return ok, err
}

// Instantiate records the instantiator and starts the counter at 0.
func (r *Registry) Instantiate(st store.ReadWriter, info contract.Info) (*contract.Response, error) {
	if err := r.config.Save(st, models.RegistryConfig{Owner: info.Sender}); err != nil {
		return nil, err
	}
	if err := r.count.Save(st, 0); err != nil {
		return nil, err
	}
	return &contract.Response{
		Event: models.NewEvent(MethodInstantiate).With("owner", info.Sender),
	}, nil
}

// Register creates an active agent owned by the caller and appends its id to
// the caller's index. Counter, record and index are written to the same view
// so they commit together.
func (r *Registry) Register(st store.ReadWriter, env contract.Env, info contract.Info, name, description, configuration string) (*contract.Response, error) {
	count, err := r.count.Load(st)
	if err != nil {
		return nil, err
	}
	if count == ^uint64(0) {
		return nil, fmt.Errorf("agent id space exhausted: %w", contract.ErrOverflow)
	}
	id := count + 1

	owned, _, err := r.owners.MayLoad(st, info.Sender)
	if err != nil {
		return nil, err
	}

	now := env.Seconds()
	agent := models.Agent{
		ID:            id,
		Owner:         info.Sender,
		Name:          name,
		Description:   description,
		Configuration: configuration,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := r.count.Save(st, id); err != nil {
		return nil, err
	}
	if err := r.agents.Save(st, id, agent); err != nil {
		return nil, err
	}
	if err := r.owners.Save(st, info.Sender, append(owned, id)); err != nil {
		return nil, err
	}

	return &contract.Response{
		ID: id,
		Event: models.NewEvent(MethodRegister).
			WithID("agent_id", id).
			With("owner", info.Sender),
	}, nil
}

// Update applies a sparse patch. Absent fields are left untouched; an empty
// patch still bumps updated_at.
func (r *Registry) Update(st store.ReadWriter, env contract.Env, info contract.Info, id uint64, patch models.AgentPatch) (*contract.Response, error) {
	agent, err := r.loadOwned(st, info, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		agent.Name = *patch.Name
	}
	if patch.Description != nil {
		agent.Description = *patch.Description
	}
	if patch.Configuration != nil {
		agent.Configuration = *patch.Configuration
	}
	touch(&agent, env)

	if err := r.agents.Save(st, id, agent); err != nil {
		return nil, err
	}
	return &contract.Response{
		Event: models.NewEvent(MethodUpdate).WithID("agent_id", id),
	}, nil
}

// Activate marks the agent active. Activating an active agent is allowed.
func (r *Registry) Activate(st store.ReadWriter, env contract.Env, info contract.Info, id uint64) (*contract.Response, error) {
	return r.setActive(st, env, info, id, true, MethodActivate)
}

// Deactivate marks the agent inactive. The id stays in the owner index.
func (r *Registry) Deactivate(st store.ReadWriter, env contract.Env, info contract.Info, id uint64) (*contract.Response, error) {
	return r.setActive(st, env, info, id, false, MethodDeactivate)
}

func (r *Registry) setActive(st store.ReadWriter, env contract.Env, info contract.Info, id uint64, active bool, method string) (*contract.Response, error) {
	agent, err := r.loadOwned(st, info, id)
	if err != nil {
		return nil, err
	}
	agent.IsActive = active
	touch(&agent, env)

	if err := r.agents.Save(st, id, agent); err != nil {
		return nil, err
	}
	return &contract.Response{
		Event: models.NewEvent(method).WithID("agent_id", id),
	}, nil
}

func (r *Registry) loadOwned(st store.Reader, info contract.Info, id uint64) (models.Agent, error) {
	agent, err := r.agents.Load(st, id)
	if err != nil {
		return agent, err
	}
	if err := contract.Guard(agent.Owner, info.Sender); err != nil {
		return agent, err
	}
	return agent, nil
}

// touch sets updated_at to the block time, never moving it backwards.
func touch(a *models.Agent, env contract.Env) {
	if now := env.Seconds(); now > a.UpdatedAt {
		a.UpdatedAt = now
	}
}

// ── Queries ─────────────────────────────────────────────────

// Config returns the instantiation record.
func (r *Registry) Config(st store.Reader) (models.RegistryConfig, error) {
	return r.config.Load(st)
}

// Count returns the highest identifier issued so far.
func (r *Registry) Count(st store.Reader) (uint64, error) {
	return r.count.Load(st)
}

// Agent returns one agent regardless of its active flag.
func (r *Registry) Agent(st store.Reader, id uint64) (models.Agent, error) {
	return r.agents.Load(st, id)
}

// Agents returns a page of all agents in identifier order, active or not.
func (r *Registry) Agents(st store.Reader, page contract.Page) ([]models.Agent, error) {
	count, err := r.count.Load(st)
	if err != nil {
		return nil, err
	}
	return contract.ScanRange(page, count, func(id uint64) (models.Agent, error) {
		return r.resolve(st, id, "agent_count")
	}, nil)
}

// OwnerAgents returns a page of the owner's agents in registration order.
func (r *Registry) OwnerAgents(st store.Reader, owner string, page contract.Page) ([]models.Agent, error) {
	owned, _, err := r.owners.MayLoad(st, owner)
	if err != nil {
		return nil, err
	}
	ids := contract.SliceSequence(owned, page)
	out := make([]models.Agent, 0, len(ids))
	for _, id := range ids {
		agent, err := r.resolve(st, id, "owner_agents")
		if err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	return out, nil
}

// resolve loads an id taken from the counter range or the owner index. Such
// ids must exist; a miss means the keyspace is corrupt.
func (r *Registry) resolve(st store.Reader, id uint64, source string) (models.Agent, error) {
	agent, err := r.agents.Load(st, id)
	var nf *store.ErrNotFound
	if errors.As(err, &nf) {
		return agent, fmt.Errorf("%s references missing agent %d: %w", source, id, contract.ErrCorrupt)
	}
	return agent, err
}
