package store

import (
	"bytes"
	"context"
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
)

// PebbleStore implements KV on a pebble database. Batches are committed
// with pebble.Sync so a returned Commit is durable.
type PebbleStore struct {
	db   *pebble.DB
	path string
}

// OpenPebble opens (or creates) a pebble database at path.
func OpenPebble(path string) (*PebbleStore, error) {
	log.Info().Str("path", path).Msg("Opening pebble db")
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Pebble open failed")
		return nil, &PersistenceError{Op: "open", Err: err}
	}
	log.Info().Str("path", path).Msg("Pebble opened")
	return &PebbleStore{db: db, path: path}, nil
}

// Get implements Reader.
func (p *PebbleStore) Get(key []byte) ([]byte, error) {
	if p.db == nil {
		return nil, &PersistenceError{Op: "get", Err: errClosed}
	}
	v, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	out := bytes.Clone(v)
	if err := closer.Close(); err != nil {
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return out, nil
}

// Iterate implements Reader. key and value are only valid during fn.
func (p *PebbleStore) Iterate(prefix, start []byte, fn func(key, value []byte) bool) error {
	if p.db == nil {
		return &PersistenceError{Op: "iterate", Err: errClosed}
	}
	lower := prefix
	if bytes.Compare(start, prefix) > 0 {
		lower = start
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return &PersistenceError{Op: "iterate", Err: err}
	}
	for iter.First(); iter.Valid(); iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return &PersistenceError{Op: "iterate", Err: err}
	}
	if err := iter.Close(); err != nil {
		return &PersistenceError{Op: "iterate", Err: err}
	}
	return nil
}

// NewBatch implements KV.
func (p *PebbleStore) NewBatch() Batch {
	return &pebbleBatch{b: p.db.NewBatch()}
}

// Ping implements KV.
func (p *PebbleStore) Ping(_ context.Context) error {
	if p.db == nil {
		return errClosed
	}
	return nil
}

// Close closes the database.
func (p *PebbleStore) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return err
	}
	p.db = nil
	log.Info().Str("path", p.path).Msg("Pebble closed")
	return nil
}

var errClosed = errors.New("pebble store is closed")

// prefixEnd returns the smallest key greater than every key with prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// ── Batch ───────────────────────────────────────────────────

type pebbleBatch struct {
	b   *pebble.Batch
	err error
}

func (b *pebbleBatch) Set(key, value []byte) {
	if b.err == nil {
		b.err = b.b.Set(key, value, nil)
	}
}

func (b *pebbleBatch) Delete(key []byte) {
	if b.err == nil {
		b.err = b.b.Delete(key, nil)
	}
}

func (b *pebbleBatch) Commit() error {
	if b.err != nil {
		return &PersistenceError{Op: "batch", Err: b.err}
	}
	if err := b.b.Commit(pebble.Sync); err != nil {
		return &PersistenceError{Op: "commit", Err: err}
	}
	return nil
}

func (b *pebbleBatch) Close() error {
	return b.b.Close()
}
