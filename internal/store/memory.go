package store

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// snapshot is the JSON-serializable shape written to disk.
// Keys are hex encoded since they are arbitrary bytes.
type snapshot struct {
	Entries map[string][]byte `json:"entries"`
}

// MemoryStore implements KV with a map plus a sorted key index. It is used
// for tests and local dev; the optional file snapshot lets data survive
// restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	keys []string // sorted

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save loop to stop
	closeOnce    sync.Once
}

// NewMemoryStore creates a new in-memory store. If snapshotPath is not empty
// the store is loaded from that file and written back after commits.
func NewMemoryStore(snapshotPath string) *MemoryStore {
	m := &MemoryStore{
		data:   make(map[string][]byte),
		saveCh: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}

	if snapshotPath != "" {
		if err := os.MkdirAll(filepath.Dir(snapshotPath), 0o755); err != nil {
			log.Warn().Err(err).Str("path", snapshotPath).Msg("Cannot create snapshot dir, persistence disabled")
		} else {
			m.snapshotPath = snapshotPath
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().
		Str("snapshot", m.snapshotPath).
		Int("keys", len(m.keys)).
		Msg("Memory store configured")

	return m
}

// Get implements Reader.
func (m *MemoryStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

// Iterate implements Reader. Values handed to fn are copies.
func (m *MemoryStore) Iterate(prefix, start []byte, fn func(key, value []byte) bool) error {
	lower := string(prefix)
	if bytes.Compare(start, prefix) > 0 {
		lower = string(start)
	}

	m.mu.RLock()
	i := sort.SearchStrings(m.keys, lower)
	type kv struct {
		k string
		v []byte
	}
	var entries []kv
	for ; i < len(m.keys); i++ {
		k := m.keys[i]
		if !bytes.HasPrefix([]byte(k), prefix) {
			break
		}
		entries = append(entries, kv{k: k, v: bytes.Clone(m.data[k])})
	}
	m.mu.RUnlock()

	for _, e := range entries {
		if !fn([]byte(e.k), e.v) {
			break
		}
	}
	return nil
}

// NewBatch implements KV.
func (m *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: m}
}

// Ping implements KV.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops the save loop and flushes a final snapshot.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.doneCh)
		if m.snapshotPath != "" {
			m.saveSnapshot()
		}
	})
	return nil
}

// Len returns the number of keys held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

func (m *MemoryStore) apply(ops []batchOp) {
	m.mu.Lock()
	for _, op := range ops {
		k := string(op.key)
		_, exists := m.data[k]
		if op.delete {
			if exists {
				delete(m.data, k)
				i := sort.SearchStrings(m.keys, k)
				m.keys = append(m.keys[:i], m.keys[i+1:]...)
			}
			continue
		}
		m.data[k] = op.value
		if !exists {
			i := sort.SearchStrings(m.keys, k)
			m.keys = append(m.keys, "")
			copy(m.keys[i+1:], m.keys[i:])
			m.keys[i] = k
		}
	}
	m.mu.Unlock()
	m.requestSave()
}

// ── Batch ───────────────────────────────────────────────────

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

type memoryBatch struct {
	store     *MemoryStore
	ops       []batchOp
	committed bool
}

func (b *memoryBatch) Set(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), value: bytes.Clone(value)})
}

func (b *memoryBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), delete: true})
}

// Commit applies every write under a single lock acquisition.
func (b *memoryBatch) Commit() error {
	if b.committed {
		return &PersistenceError{Op: "commit", Err: errBatchCommitted}
	}
	b.committed = true
	b.store.apply(b.ops)
	return nil
}

func (b *memoryBatch) Close() error {
	b.ops = nil
	return nil
}

// ── Snapshot persistence ────────────────────────────────────

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop debounces save requests (max 1 write per 200ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(200 * time.Millisecond)
			m.saveSnapshot()
		}
	}
}

// saveSnapshot persists all data to disk as JSON.
func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{Entries: make(map[string][]byte, len(m.data))}
	for k, v := range m.data {
		snap.Entries[hex.EncodeToString([]byte(k))] = v
	}
	data, err := json.Marshal(snap)
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}

	log.Debug().Str("path", m.snapshotPath).Int("keys", len(snap.Entries)).Msg("Snapshot saved")
}

// loadSnapshot reads data from disk on startup.
func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for hk, v := range snap.Entries {
		k, err := hex.DecodeString(hk)
		if err != nil {
			log.Warn().Str("key", hk).Msg("Skipping malformed snapshot key")
			continue
		}
		m.data[string(k)] = v
		m.keys = append(m.keys, string(k))
	}
	sort.Strings(m.keys)

	log.Info().
		Int("keys", len(m.keys)).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
}
