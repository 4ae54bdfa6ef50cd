// Package bank keeps per-address balances and executes the transfer batches
// returned by the engines. It writes only to the view it is handed, so a
// batch applied to a Txn lands atomically with the rest of the request.
package bank

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentoven/agentoven/ledger/internal/contract"
	"github.com/agentoven/agentoven/ledger/internal/store"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

// ErrInsufficientBalance is returned when a debit exceeds the balance held.
var ErrInsufficientBalance = errors.New("insufficient balance")

const sep = "\x00"

// Bank owns the balances keyspace. Keys are address + NUL + denom so that
// all denominations of one address are contiguous.
type Bank struct {
	balances store.Map[string, models.Amount]
}

// New declares the bank keyspace.
func New() *Bank {
	return &Bank{balances: store.NewStringMap[models.Amount]("balances")}
}

func balanceKey(addr, denom string) string { return addr + sep + denom }

// Balance returns the amount of denom held by addr. Unknown pairs hold 0.
func (b *Bank) Balance(r store.Reader, addr, denom string) (models.Amount, error) {
	v, _, err := b.balances.MayLoad(r, balanceKey(addr, denom))
	return v, err
}

// Balances returns every non-zero coin held by addr, ordered by denom.
func (b *Bank) Balances(r store.Reader, addr string) ([]models.Coin, error) {
	var coins []models.Coin
	err := b.balances.Scan(r, []byte(addr+sep), func(key []byte, v models.Amount) (bool, error) {
		if !v.IsZero() {
			denom := strings.TrimPrefix(string(key), addr+sep)
			coins = append(coins, models.Coin{Denom: denom, Amount: v})
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return coins, nil
}

// Mint credits coin to addr out of nothing. Used for genesis balances.
func (b *Bank) Mint(st store.ReadWriter, addr string, coin models.Coin) error {
	return b.credit(st, addr, coin)
}

// Send moves coin from one address to another. A zero amount is a no-op.
func (b *Bank) Send(st store.ReadWriter, from, to string, coin models.Coin) error {
	if coin.Amount.IsZero() {
		return nil
	}
	if err := b.debit(st, from, coin); err != nil {
		return err
	}
	return b.credit(st, to, coin)
}

// Apply executes transfers in order, paying each one out of from.
func (b *Bank) Apply(st store.ReadWriter, from string, transfers []models.Transfer) error {
	for i, t := range transfers {
		coin := models.Coin{Denom: t.Denom, Amount: t.Amount}
		if err := b.Send(st, from, t.Recipient, coin); err != nil {
			return fmt.Errorf("transfer %d to %s: %w", i, t.Recipient, err)
		}
	}
	return nil
}

func (b *Bank) debit(st store.ReadWriter, addr string, coin models.Coin) error {
	key := balanceKey(addr, coin.Denom)
	have, _, err := b.balances.MayLoad(st, key)
	if err != nil {
		return err
	}
	left, underflow := have.Sub(coin.Amount)
	if underflow {
		return fmt.Errorf("%w: %s holds %s%s, needs %s%s",
			ErrInsufficientBalance, addr, have, coin.Denom, coin.Amount, coin.Denom)
	}
	if left.IsZero() {
		b.balances.Remove(st, key)
		return nil
	}
	return b.balances.Save(st, key, left)
}

func (b *Bank) credit(st store.ReadWriter, addr string, coin models.Coin) error {
	if coin.Amount.IsZero() {
		return nil
	}
	key := balanceKey(addr, coin.Denom)
	have, _, err := b.balances.MayLoad(st, key)
	if err != nil {
		return err
	}
	sum, overflow := have.Add(coin.Amount)
	if overflow {
		return fmt.Errorf("credit %s%s to %s: %w", coin.Amount, coin.Denom, addr, contract.ErrOverflow)
	}
	return b.balances.Save(st, key, sum)
}
