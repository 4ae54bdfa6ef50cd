package store_test

import (
	"testing"

	"github.com/agentoven/agentoven/ledger/internal/store"
)

type record struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

func TestItemLoadSave(t *testing.T) {
	s := newTestStore(t)
	txn := store.NewTxn(s)
	count := store.NewItem[uint64]("count")

	if _, err := count.Load(txn); !store.IsNotFound(err) {
		t.Errorf("Load() before Save error = %v, want not found", err)
	}
	if _, ok, err := count.MayLoad(txn); ok || err != nil {
		t.Errorf("MayLoad() = ok %v err %v, want false nil", ok, err)
	}
	if err := count.Save(txn, 7); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := count.Load(txn)
	if err != nil || got != 7 {
		t.Errorf("Load() = %d, %v; want 7", got, err)
	}
}

func TestU64MapOrdersNumerically(t *testing.T) {
	s := newTestStore(t)
	txn := store.NewTxn(s)
	records := store.NewU64Map[record]("records")

	for _, id := range []uint64{300, 2, 1 << 40, 10} {
		if err := records.Save(txn, id, record{ID: id}); err != nil {
			t.Fatalf("Save(%d) error = %v", id, err)
		}
	}

	var ids []uint64
	err := records.Scan(txn, nil, func(_ []byte, r record) (bool, error) {
		ids = append(ids, r.ID)
		return true, nil
	})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	want := []uint64{2, 10, 300, 1 << 40}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Scan() order = %v, want %v", ids, want)
		}
	}

	_, err = records.Load(txn, 99)
	if !store.IsNotFound(err) {
		t.Errorf("Load(99) error = %v, want not found", err)
	}
	if err.Error() != "records not found: 99" {
		t.Errorf("Load(99) message = %q", err.Error())
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	s := newTestStore(t)
	txn := store.NewTxn(s)
	a := store.NewStringMap[string]("agents")
	b := store.NewStringMap[string]("agents_extra")

	a.Save(txn, "k", "from-a")
	b.Save(txn, "k", "from-b")

	n := 0
	a.Scan(txn, nil, func(_ []byte, _ string) (bool, error) {
		n++
		return true, nil
	})
	if n != 1 {
		t.Errorf("Scan(agents) saw %d entries, want 1", n)
	}

	left := store.Prefix(txn, "left")
	right := store.Prefix(txn, "right")
	a.Save(left, "k", "left")
	got, err := a.Load(right, "k")
	if !store.IsNotFound(err) {
		t.Errorf("Load(right) = %q, %v; want not found", got, err)
	}
	got, err = a.Load(store.PrefixReader(txn, "left"), "k")
	if err != nil || got != "left" {
		t.Errorf("Load(left) = %q, %v", got, err)
	}
}
