package store

import (
	"bytes"
	"sort"
)

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Txn buffers writes over a KV. Reads observe the Txn's own pending writes.
// Nothing reaches the backend until Commit, which flushes every write as one
// batch; Discard drops them. A Txn is not safe for concurrent use.
type Txn struct {
	kv      KV
	pending map[string]pendingWrite
	done    bool
}

// NewTxn starts a transaction over kv.
func NewTxn(kv KV) *Txn {
	return &Txn{kv: kv, pending: make(map[string]pendingWrite)}
}

// Get implements Reader.
func (t *Txn) Get(key []byte) ([]byte, error) {
	if w, ok := t.pending[string(key)]; ok {
		if w.deleted {
			return nil, ErrKeyNotFound
		}
		return bytes.Clone(w.value), nil
	}
	return t.kv.Get(key)
}

// Iterate implements Reader by merging committed entries with pending writes.
func (t *Txn) Iterate(prefix, start []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	err := t.kv.Iterate(prefix, start, func(k, v []byte) bool {
		merged[string(k)] = bytes.Clone(v)
		return true
	})
	if err != nil {
		return err
	}
	for k, w := range t.pending {
		kb := []byte(k)
		if !bytes.HasPrefix(kb, prefix) || bytes.Compare(kb, start) < 0 {
			continue
		}
		if w.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = w.value
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), bytes.Clone(merged[k])) {
			break
		}
	}
	return nil
}

// Set implements Writer. Writes after Commit or Discard are ignored.
func (t *Txn) Set(key, value []byte) {
	if t.done {
		return
	}
	t.pending[string(key)] = pendingWrite{value: bytes.Clone(value)}
}

// Delete implements Writer.
func (t *Txn) Delete(key []byte) {
	if t.done {
		return
	}
	t.pending[string(key)] = pendingWrite{deleted: true}
}

// Len returns the number of pending writes.
func (t *Txn) Len() int { return len(t.pending) }

// Commit writes all pending changes in a single batch. A Txn with no
// pending writes commits without touching the backend.
func (t *Txn) Commit() error {
	if t.done {
		return &PersistenceError{Op: "commit", Err: errBatchCommitted}
	}
	t.done = true
	if len(t.pending) == 0 {
		return nil
	}

	keys := make([]string, 0, len(t.pending))
	for k := range t.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := t.kv.NewBatch()
	defer b.Close()
	for _, k := range keys {
		w := t.pending[k]
		if w.deleted {
			b.Delete([]byte(k))
		} else {
			b.Set([]byte(k), w.value)
		}
	}
	if err := b.Commit(); err != nil {
		if IsPersistence(err) {
			return err
		}
		return &PersistenceError{Op: "commit", Err: err}
	}
	t.pending = nil
	return nil
}

// Discard drops every pending write. It is safe to call after Commit.
func (t *Txn) Discard() {
	t.done = true
	t.pending = nil
}
