package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strconv"
)

// namespaceKey returns the length-prefixed namespace used by Map and Prefix,
// so that no namespace can be a byte prefix of another.
func namespaceKey(ns string) []byte {
	b := make([]byte, 2, 2+len(ns))
	binary.BigEndian.PutUint16(b, uint16(len(ns)))
	return append(b, ns...)
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func wrapRead(op string, err error) error {
	if IsPersistence(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// ── Prefixed views ──────────────────────────────────────────

type prefixed struct {
	prefix []byte
	r      Reader
	w      Writer
}

// Prefix returns a view of rw confined to the namespace ns.
func Prefix(rw ReadWriter, ns string) ReadWriter {
	return &prefixed{prefix: namespaceKey(ns), r: rw, w: rw}
}

// PrefixReader returns a read-only view of r confined to the namespace ns.
func PrefixReader(r Reader, ns string) Reader {
	return &prefixed{prefix: namespaceKey(ns), r: r}
}

func (p *prefixed) Get(key []byte) ([]byte, error) {
	return p.r.Get(concat(p.prefix, key))
}

func (p *prefixed) Iterate(prefix, start []byte, fn func(key, value []byte) bool) error {
	var full []byte
	if start != nil {
		full = concat(p.prefix, start)
	}
	n := len(p.prefix)
	return p.r.Iterate(concat(p.prefix, prefix), full, func(k, v []byte) bool {
		return fn(k[n:], v)
	})
}

func (p *prefixed) Set(key, value []byte) { p.w.Set(concat(p.prefix, key), value) }

func (p *prefixed) Delete(key []byte) { p.w.Delete(concat(p.prefix, key)) }

// ── Item ────────────────────────────────────────────────────

// Item is a single JSON-encoded value stored under a fixed key.
type Item[T any] struct {
	name string
}

// NewItem declares an item stored under name.
func NewItem[T any](name string) Item[T] {
	return Item[T]{name: name}
}

// Load returns the value or *ErrNotFound if it was never saved.
func (i Item[T]) Load(r Reader) (T, error) {
	v, ok, err := i.MayLoad(r)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, &ErrNotFound{Entity: i.name}
	}
	return v, nil
}

// MayLoad returns the value and whether it exists.
func (i Item[T]) MayLoad(r Reader) (T, bool, error) {
	var v T
	raw, err := r.Get([]byte(i.name))
	if errors.Is(err, ErrKeyNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, wrapRead("get "+i.name, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, &PersistenceError{Op: "decode " + i.name, Err: err}
	}
	return v, true, nil
}

// Save stores v.
func (i Item[T]) Save(w Writer, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &PersistenceError{Op: "encode " + i.name, Err: err}
	}
	w.Set([]byte(i.name), raw)
	return nil
}

// ── Map ─────────────────────────────────────────────────────

// Map is a namespace of JSON-encoded values addressed by an encoded key.
// Iteration order is the byte order of the encoded keys.
type Map[K any, V any] struct {
	ns     string
	prefix []byte
	encode func(K) []byte
	format func(K) string
}

// U64Key encodes id big-endian so byte order equals numeric order.
func U64Key(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

// NewU64Map declares a map keyed by unsigned identifiers.
func NewU64Map[V any](ns string) Map[uint64, V] {
	return Map[uint64, V]{
		ns:     ns,
		prefix: namespaceKey(ns),
		encode: U64Key,
		format: func(k uint64) string { return strconv.FormatUint(k, 10) },
	}
}

// NewStringMap declares a map keyed by raw strings.
func NewStringMap[V any](ns string) Map[string, V] {
	return Map[string, V]{
		ns:     ns,
		prefix: namespaceKey(ns),
		encode: func(k string) []byte { return []byte(k) },
		format: func(k string) string { return k },
	}
}

// Namespace returns the map's namespace.
func (m Map[K, V]) Namespace() string { return m.ns }

func (m Map[K, V]) key(k K) []byte { return concat(m.prefix, m.encode(k)) }

// Load returns the value at k or *ErrNotFound.
func (m Map[K, V]) Load(r Reader, k K) (V, error) {
	v, ok, err := m.MayLoad(r, k)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, &ErrNotFound{Entity: m.ns, Key: m.format(k)}
	}
	return v, nil
}

// MayLoad returns the value at k and whether it exists.
func (m Map[K, V]) MayLoad(r Reader, k K) (V, bool, error) {
	var v V
	raw, err := r.Get(m.key(k))
	if errors.Is(err, ErrKeyNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, wrapRead("get "+m.ns, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, &PersistenceError{Op: "decode " + m.ns, Err: err}
	}
	return v, true, nil
}

// Has reports whether a value exists at k.
func (m Map[K, V]) Has(r Reader, k K) (bool, error) {
	_, err := r.Get(m.key(k))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapRead("get "+m.ns, err)
	}
	return true, nil
}

// Save stores v at k.
func (m Map[K, V]) Save(w Writer, k K, v V) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &PersistenceError{Op: "encode " + m.ns, Err: err}
	}
	w.Set(m.key(k), raw)
	return nil
}

// Remove deletes the value at k.
func (m Map[K, V]) Remove(w Writer, k K) {
	w.Delete(m.key(k))
}

// Scan calls fn, in key order, for every entry whose encoded key starts with
// sub. The key passed to fn is the encoded map key without the namespace.
// Scanning stops when fn returns false or an error.
func (m Map[K, V]) Scan(r Reader, sub []byte, fn func(key []byte, v V) (bool, error)) error {
	var scanErr error
	n := len(m.prefix)
	err := r.Iterate(concat(m.prefix, sub), nil, func(k, raw []byte) bool {
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			scanErr = &PersistenceError{Op: "decode " + m.ns, Err: err}
			return false
		}
		more, err := fn(bytes.Clone(k[n:]), v)
		if err != nil {
			scanErr = err
			return false
		}
		return more
	})
	if err != nil {
		return wrapRead("scan "+m.ns, err)
	}
	return scanErr
}
