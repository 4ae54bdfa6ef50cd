package ledger

import (
	"errors"

	"github.com/agentoven/agentoven/ledger/internal/bank"
	"github.com/agentoven/agentoven/ledger/internal/contract"
	"github.com/agentoven/agentoven/ledger/internal/store"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// ErrInvalidFunds is returned for malformed coins attached to a message.
var ErrInvalidFunds = errors.New("invalid funds")

// ErrorKind classifies err for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case store.IsNotFound(err):
		return "not_found"
	case errors.Is(err, contract.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, contract.ErrListingInactive):
		return "listing_inactive"
	case errors.Is(err, contract.ErrNoFunds):
		return "no_funds"
	case errors.Is(err, contract.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, bank.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrNoCaller):
		return "no_caller"
	case errors.Is(err, ErrUnknownMessage),
		errors.Is(err, ErrInvalidFunds),
		errors.Is(err, contract.ErrInvalidFee),
		errors.Is(err, models.ErrAmountOverflow):
		return "invalid"
	case errors.Is(err, contract.ErrCorrupt):
		return "corrupt"
	case store.IsPersistence(err):
		return "persistence"
	case errors.Is(err, contract.ErrOverflow):
		return "overflow"
	default:
		return "internal"
	}
}
