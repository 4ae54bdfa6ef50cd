// Package contract holds the primitives shared by the registry and the
// marketplace engines: error kinds, the ownership guard, the pagination
// cursor, and the execution environment handed to every operation.
//
// Engines are deterministic: every operation is a function of
// (store view, Env, Info, typed fields) to (writes, Response). Writes go to
// a store.Txn that the host commits only when the operation succeeds.
package contract

import (
	"errors"
	"time"

	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// Error kinds surfaced to callers. Not-found conditions are reported as
// *store.ErrNotFound and persistence failures as *store.PersistenceError.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrListingInactive   = errors.New("listing not active")
	ErrNoFunds           = errors.New("no funds sent")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverflow          = errors.New("arithmetic overflow")
	ErrInvalidFee        = errors.New("fee percentage must be between 0 and 100")
	ErrCorrupt           = errors.New("store corrupt")
)

// Guard is the authorization check applied before every mutation of an
// existing record: only the stored owner may act on it.
func Guard(owner, caller string) error {
	if owner != caller {
		return ErrUnauthorized
	}
	return nil
}

// Env is the host environment of one request.
type Env struct {
	BlockTime time.Time
}

// Seconds returns the block time as unix seconds.
func (e Env) Seconds() uint64 {
	s := e.BlockTime.Unix()
	if s < 0 {
		return 0
	}
	return uint64(s)
}

// Info describes the caller of one request. Sender is already authenticated.
type Info struct {
	Sender string
	Funds  []models.Coin
}

// Response is what a successful mutation hands back to the host.
type Response struct {
	Event models.Event
	// ID is the identifier assigned by create operations.
	ID uint64
	// Transfers must be executed atomically with the request's writes.
	Transfers []models.Transfer
	Receipt   *models.Receipt
}
