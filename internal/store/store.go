// Package store provides the keyed storage substrate for the ledger.
// Both backends (in-memory for tests and local dev, pebble for durable
// deployments) expose the same byte-ordered KV interface; engines never talk
// to a backend directly but go through a Txn and the typed Item/Map accessors.
package store

import (
	"context"
	"errors"
)

// Reader is the read half of a keyspace.
type Reader interface {
	// Get returns the value stored at key or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)

	// Iterate calls fn for every key with the given prefix that sorts at or
	// after start (nil start means the beginning of the prefix), in ascending
	// byte order, until fn returns false.
	Iterate(prefix, start []byte, fn func(key, value []byte) bool) error
}

// Writer is the write half of a keyspace.
type Writer interface {
	Set(key, value []byte)
	Delete(key []byte)
}

// ReadWriter is a keyspace that can be read and written, usually a Txn.
type ReadWriter interface {
	Reader
	Writer
}

// Batch is a set of writes applied all-or-nothing by Commit.
type Batch interface {
	Writer
	Commit() error
	Close() error
}

// KV is a storage backend.
type KV interface {
	Reader

	// NewBatch starts a write batch.
	NewBatch() Batch

	// Ping checks the backend is usable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the backend.
	Close() error
}

// ── Errors ──────────────────────────────────────────────────

// ErrKeyNotFound is returned by Reader.Get for a missing key.
var ErrKeyNotFound = errors.New("key not found")

var errBatchCommitted = errors.New("batch already committed")

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	if e.Key == "" {
		return e.Entity + " not found"
	}
	return e.Entity + " not found: " + e.Key
}

// IsNotFound reports whether err is (or wraps) an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// PersistenceError wraps a backend read or write failure. It is fatal to the
// current request only.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is (or wraps) a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
