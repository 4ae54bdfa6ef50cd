package contract

import "math"

const (
	// DefaultLimit is the page size when the caller gives none.
	DefaultLimit = 10
	// MaxLimit caps every page.
	MaxLimit = 100
)

// Page is a pagination cursor: resume after StartAfter, return at most Limit.
type Page struct {
	StartAfter *uint64 `json:"start_after,omitempty"`
	Limit      *uint32 `json:"limit,omitempty"`
}

// Size returns the effective page size.
func (p Page) Size() int {
	if p.Limit == nil {
		return DefaultLimit
	}
	if *p.Limit > MaxLimit {
		return MaxLimit
	}
	return int(*p.Limit)
}

// ScanRange walks identifiers from just after p.StartAfter (or 1) up to and
// including last, loading each one, and collects up to p.Size() records for
// which keep returns true (keep may be nil). Every identifier up to last
// must resolve; load errors are returned as is.
func ScanRange[T any](p Page, last uint64, load func(id uint64) (T, error), keep func(T) bool) ([]T, error) {
	limit := p.Size()
	out := make([]T, 0, min(limit, DefaultLimit))
	if limit == 0 {
		return out, nil
	}

	start := uint64(1)
	if p.StartAfter != nil {
		if *p.StartAfter == math.MaxUint64 {
			return out, nil
		}
		start = *p.StartAfter + 1
	}

	for id := start; id <= last && len(out) < limit; id++ {
		rec, err := load(id)
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(rec) {
			out = append(out, rec)
		}
		if id == math.MaxUint64 {
			break
		}
	}
	return out, nil
}

// SliceSequence returns the window of seq selected by p. StartAfter is
// located by value; when it is absent from seq the window starts at the
// beginning.
func SliceSequence(seq []uint64, p Page) []uint64 {
	pos := 0
	if p.StartAfter != nil {
		for i, id := range seq {
			if id == *p.StartAfter {
				pos = i + 1
				break
			}
		}
	}
	end := min(pos+p.Size(), len(seq))
	if pos >= end {
		return nil
	}
	return seq[pos:end]
}
