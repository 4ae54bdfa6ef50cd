package contract_test

import (
	"errors"
	"testing"

	"github.com/agentoven/agentoven/ledger/internal/contract"
)

func u64(v uint64) *uint64 { return &v }
func u32(v uint32) *uint32 { return &v }

func identity(id uint64) (uint64, error) { return id, nil }

func TestScanRangeChainsPages(t *testing.T) {
	var all []uint64
	page := contract.Page{Limit: u32(10)}
	for i := 0; i < 4; i++ {
		got, err := contract.ScanRange(page, 25, identity, nil)
		if err != nil {
			t.Fatalf("ScanRange() error = %v", err)
		}
		if len(got) == 0 {
			break
		}
		all = append(all, got...)
		page.StartAfter = u64(got[len(got)-1])
	}

	if len(all) != 25 {
		t.Fatalf("collected %d ids, want 25", len(all))
	}
	for i, id := range all {
		if id != uint64(i+1) {
			t.Fatalf("ids[%d] = %d, want %d", i, id, i+1)
		}
	}
}

func TestScanRangeDefaultsAndFilter(t *testing.T) {
	got, _ := contract.ScanRange(contract.Page{}, 50, identity, nil)
	if len(got) != contract.DefaultLimit {
		t.Errorf("default page size = %d, want %d", len(got), contract.DefaultLimit)
	}

	even := func(id uint64) bool { return id%2 == 0 }
	got, _ = contract.ScanRange(contract.Page{Limit: u32(3)}, 50, identity, even)
	want := []uint64{2, 4, 6}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("filtered page = %v, want %v", got, want)
			break
		}
	}

	got, _ = contract.ScanRange(contract.Page{Limit: u32(1000)}, 500, identity, nil)
	if len(got) != contract.MaxLimit {
		t.Errorf("capped page size = %d, want %d", len(got), contract.MaxLimit)
	}

	got, _ = contract.ScanRange(contract.Page{StartAfter: u64(^uint64(0))}, 5, identity, nil)
	if len(got) != 0 {
		t.Errorf("start after max = %v, want empty", got)
	}
}

func TestScanRangePropagatesLoadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := contract.ScanRange(contract.Page{}, 5, func(id uint64) (uint64, error) {
		if id == 3 {
			return 0, boom
		}
		return id, nil
	}, nil)
	if !errors.Is(err, boom) {
		t.Errorf("ScanRange() error = %v, want boom", err)
	}
}

func TestSliceSequence(t *testing.T) {
	seq := []uint64{4, 9, 12, 30, 31}

	got := contract.SliceSequence(seq, contract.Page{Limit: u32(2)})
	if len(got) != 2 || got[0] != 4 || got[1] != 9 {
		t.Errorf("first page = %v", got)
	}

	got = contract.SliceSequence(seq, contract.Page{StartAfter: u64(12)})
	if len(got) != 2 || got[0] != 30 {
		t.Errorf("after 12 = %v", got)
	}

	// Unknown cursor falls back to the beginning.
	got = contract.SliceSequence(seq, contract.Page{StartAfter: u64(5), Limit: u32(1)})
	if len(got) != 1 || got[0] != 4 {
		t.Errorf("unknown cursor = %v", got)
	}

	if got := contract.SliceSequence(seq, contract.Page{StartAfter: u64(31)}); len(got) != 0 {
		t.Errorf("after last = %v, want empty", got)
	}
}

func TestGuard(t *testing.T) {
	if err := contract.Guard("alice", "alice"); err != nil {
		t.Errorf("Guard(owner) = %v", err)
	}
	if err := contract.Guard("alice", "bob"); !errors.Is(err, contract.ErrUnauthorized) {
		t.Errorf("Guard(other) = %v, want ErrUnauthorized", err)
	}
}
