package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// ErrUnknownMessage is returned for a message the dispatcher does not handle.
var ErrUnknownMessage = errors.New("unknown message")

// Target names the engine a message is addressed to.
type Target string

const (
	TargetRegistry    Target = "registry"
	TargetMarketplace Target = "marketplace"
)

// Msg is one state-changing request. The set of variants is closed: only
// the types in this file implement it.
type Msg interface {
	// Method is the snake_case name of the variant, used as the wire tag.
	Method() string
	// Target is the engine that handles the variant.
	Target() Target

	isMsg()
}

// ── Registry ────────────────────────────────────────────────

type RegisterAgent struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Configuration string `json:"configuration"`
}

type UpdateAgent struct {
	AgentID uint64 `json:"agent_id"`
	models.AgentPatch
}

type ActivateAgent struct {
	AgentID uint64 `json:"agent_id"`
}

type DeactivateAgent struct {
	AgentID uint64 `json:"agent_id"`
}

// ── Marketplace ─────────────────────────────────────────────

type ListAgent struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       models.Amount `json:"price"`
	Category    string        `json:"category"`
}

type UpdateListing struct {
	AgentID uint64 `json:"agent_id"`
	models.ListingPatch
}

type RemoveListing struct {
	AgentID uint64 `json:"agent_id"`
}

type PurchaseListing struct {
	AgentID uint64 `json:"agent_id"`
}

func (RegisterAgent) Method() string   { return "register_agent" }
func (UpdateAgent) Method() string     { return "update_agent" }
func (ActivateAgent) Method() string   { return "activate_agent" }
func (DeactivateAgent) Method() string { return "deactivate_agent" }
func (ListAgent) Method() string       { return "list_agent" }
func (UpdateListing) Method() string   { return "update_listing" }
func (RemoveListing) Method() string   { return "remove_listing" }
func (PurchaseListing) Method() string { return "purchase_listing" }

func (RegisterAgent) Target() Target   { return TargetRegistry }
func (UpdateAgent) Target() Target     { return TargetRegistry }
func (ActivateAgent) Target() Target   { return TargetRegistry }
func (DeactivateAgent) Target() Target { return TargetRegistry }
func (ListAgent) Target() Target       { return TargetMarketplace }
func (UpdateListing) Target() Target   { return TargetMarketplace }
func (RemoveListing) Target() Target   { return TargetMarketplace }
func (PurchaseListing) Target() Target { return TargetMarketplace }

func (RegisterAgent) isMsg()   {}
func (UpdateAgent) isMsg()     {}
func (ActivateAgent) isMsg()   {}
func (DeactivateAgent) isMsg() {}
func (ListAgent) isMsg()       {}
func (UpdateListing) isMsg()   {}
func (RemoveListing) isMsg()   {}
func (PurchaseListing) isMsg() {}

// ── Wire form ───────────────────────────────────────────────

// decoders maps each wire tag to a constructor for its variant.
var decoders = map[string]func(json.RawMessage) (Msg, error){
	"register_agent":   decodeAs[RegisterAgent],
	"update_agent":     decodeAs[UpdateAgent],
	"activate_agent":   decodeAs[ActivateAgent],
	"deactivate_agent": decodeAs[DeactivateAgent],
	"list_agent":       decodeAs[ListAgent],
	"update_listing":   decodeAs[UpdateListing],
	"remove_listing":   decodeAs[RemoveListing],
	"purchase_listing": decodeAs[PurchaseListing],
}

func decodeAs[T Msg](raw json.RawMessage) (Msg, error) {
	var m T
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeMsg parses the externally tagged form {"<method>": {fields}}.
func DecodeMsg(data []byte) (Msg, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if len(env) != 1 {
		return nil, fmt.Errorf("decode message: want exactly one variant, got %d", len(env))
	}
	for tag, body := range env {
		decode, ok := decoders[tag]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, tag)
		}
		m, err := decode(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", tag, err)
		}
		return m, nil
	}
	return nil, ErrUnknownMessage
}

// EncodeMsg produces the externally tagged form of m.
func EncodeMsg(m Msg) ([]byte, error) {
	return json.Marshal(map[string]Msg{m.Method(): m})
}
