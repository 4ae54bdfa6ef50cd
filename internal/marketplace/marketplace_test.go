package marketplace_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/agentoven/ledger/internal/contract"
	"github.com/agentoven/agentoven/ledger/internal/marketplace"
	"github.com/agentoven/agentoven/ledger/internal/store"
	"github.com/agentoven/agentoven/ledger/pkg/models"
)

type testMarket struct {
	t  *testing.T
	m  *marketplace.Marketplace
	kv *store.MemoryStore
}

func newTestMarket(t *testing.T, fee uint32) *testMarket {
	t.Helper()
	kv := store.NewMemoryStore("")
	t.Cleanup(func() { kv.Close() })

	tm := &testMarket{t: t, m: marketplace.New(), kv: kv}
	_, err := tm.exec(func(st store.ReadWriter) (*contract.Response, error) {
		return tm.m.Instantiate(st, contract.Info{Sender: "operator"}, fee, "")
	})
	require.NoError(t, err)
	return tm
}

func (tm *testMarket) exec(fn func(st store.ReadWriter) (*contract.Response, error)) (*contract.Response, error) {
	txn := store.NewTxn(tm.kv)
	res, err := fn(txn)
	if err != nil {
		txn.Discard()
		return nil, err
	}
	require.NoError(tm.t, txn.Commit())
	return res, nil
}

func (tm *testMarket) list(owner, name, category string, price uint64) uint64 {
	tm.t.Helper()
	res, err := tm.exec(func(st store.ReadWriter) (*contract.Response, error) {
		return tm.m.List(st, contract.Info{Sender: owner}, name, name+" description", models.NewAmount(price), category)
	})
	require.NoError(tm.t, err)
	return res.ID
}

func (tm *testMarket) remove(owner string, id uint64) error {
	_, err := tm.exec(func(st store.ReadWriter) (*contract.Response, error) {
		return tm.m.Remove(st, contract.Info{Sender: owner}, id)
	})
	return err
}

func (tm *testMarket) purchase(buyer string, id uint64, funds ...models.Coin) (*contract.Response, error) {
	return tm.m.Purchase(tm.kv, contract.Info{Sender: buyer, Funds: funds}, id)
}

func inj(n uint64) models.Coin { return models.Coin{Denom: "inj", Amount: models.NewAmount(n)} }

func ptr[T any](v T) *T { return &v }

func ids(ls []models.Listing) []uint64 {
	out := make([]uint64, len(ls))
	for i, l := range ls {
		out[i] = l.ID
	}
	return out
}

// ── Instantiate ─────────────────────────────────────────────

func TestInstantiateDefaults(t *testing.T) {
	tm := newTestMarket(t, 5)

	cfg, err := tm.m.Config(tm.kv)
	require.NoError(t, err)
	assert.Equal(t, models.MarketplaceConfig{Operator: "operator", FeePercentage: 5, Denom: "inj"}, cfg)
}

func TestInstantiateRejectsFeeAboveHundred(t *testing.T) {
	kv := store.NewMemoryStore("")
	defer kv.Close()

	_, err := marketplace.New().Instantiate(store.NewTxn(kv), contract.Info{Sender: "op"}, 101, "")
	assert.ErrorIs(t, err, contract.ErrInvalidFee)
}

// ── Listing lifecycle ───────────────────────────────────────

func TestListAndGet(t *testing.T) {
	tm := newTestMarket(t, 5)
	id := tm.list("seller", "summarizer", "nlp", 100)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(2), tm.list("seller", "other", "nlp", 1))

	l, err := tm.m.Listing(tm.kv, id)
	require.NoError(t, err)
	assert.Equal(t, "seller", l.Owner)
	assert.Equal(t, "100", l.Price.String())
	assert.True(t, l.IsActive)

	_, err = tm.m.Listing(tm.kv, 99)
	assert.True(t, store.IsNotFound(err), "Listing(99) error = %v", err)
}

func TestUpdateIsSparseAndOwnerGated(t *testing.T) {
	tm := newTestMarket(t, 5)
	id := tm.list("seller", "summarizer", "nlp", 100)

	_, err := tm.exec(func(st store.ReadWriter) (*contract.Response, error) {
		return tm.m.Update(st, contract.Info{Sender: "mallory"}, id, models.ListingPatch{Price: ptr(models.NewAmount(1))})
	})
	assert.ErrorIs(t, err, contract.ErrUnauthorized)

	_, err = tm.exec(func(st store.ReadWriter) (*contract.Response, error) {
		return tm.m.Update(st, contract.Info{Sender: "seller"}, id, models.ListingPatch{
			Price:    ptr(models.NewAmount(250)),
			Category: ptr("writing"),
		})
	})
	require.NoError(t, err)

	l, _ := tm.m.Listing(tm.kv, id)
	assert.Equal(t, "summarizer", l.Name)
	assert.Equal(t, "250", l.Price.String())
	assert.Equal(t, "writing", l.Category)
}

func TestRemoveIsSoftAndIdempotent(t *testing.T) {
	tm := newTestMarket(t, 5)
	id := tm.list("seller", "summarizer", "nlp", 100)

	assert.ErrorIs(t, tm.remove("mallory", id), contract.ErrUnauthorized)
	require.NoError(t, tm.remove("seller", id))
	require.NoError(t, tm.remove("seller", id))

	l, err := tm.m.Listing(tm.kv, id)
	require.NoError(t, err, "removed listing must stay fetchable")
	assert.False(t, l.IsActive)

	page, err := tm.m.Browse(tm.kv, contract.Page{}, marketplace.Filter{})
	require.NoError(t, err)
	assert.Empty(t, page)
}

// ── Purchase ────────────────────────────────────────────────

func TestPurchaseExactPayment(t *testing.T) {
	tm := newTestMarket(t, 5)
	id := tm.list("seller", "summarizer", "nlp", 100)

	res, err := tm.purchase("buyer", id, inj(100))
	require.NoError(t, err)

	require.Len(t, res.Transfers, 2)
	assert.Equal(t, models.Transfer{Recipient: "seller", Denom: "inj", Amount: models.NewAmount(95)}, res.Transfers[0])
	assert.Equal(t, models.Transfer{Recipient: "operator", Denom: "inj", Amount: models.NewAmount(5)}, res.Transfers[1])

	r := res.Receipt
	require.NotNil(t, r)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "buyer", r.Buyer)
	assert.Equal(t, "seller", r.Seller)
	assert.Equal(t, "5", r.Fee.String())
	assert.Equal(t, "95", r.SellerAmount.String())
	assert.True(t, r.Excess.IsZero())

	for key, want := range map[string]string{
		"method": marketplace.MethodPurchase, "agent_id": "1", "buyer": "buyer",
		"seller": "seller", "price": "100", "fee": "5",
	} {
		got, ok := res.Event.Get(key)
		assert.True(t, ok, "missing attribute %s", key)
		assert.Equal(t, want, got, "attribute %s", key)
	}

	l, _ := tm.m.Listing(tm.kv, id)
	assert.True(t, l.IsActive, "purchase does not deactivate the listing")
}

func TestPurchaseOverpaymentIsNotRefunded(t *testing.T) {
	tm := newTestMarket(t, 10)
	id := tm.list("seller", "summarizer", "nlp", 100)

	res, err := tm.purchase("buyer", id, models.Coin{Denom: "usdt", Amount: models.NewAmount(1)}, inj(130))
	require.NoError(t, err)

	assert.Equal(t, "90", res.Transfers[0].Amount.String())
	assert.Equal(t, "10", res.Transfers[1].Amount.String())
	assert.Equal(t, "130", res.Receipt.Paid.String())
	assert.Equal(t, "30", res.Receipt.Excess.String())
}

func TestPurchaseFailures(t *testing.T) {
	tm := newTestMarket(t, 5)
	active := tm.list("seller", "a", "nlp", 100)
	removed := tm.list("seller", "b", "nlp", 100)
	require.NoError(t, tm.remove("seller", removed))

	cases := []struct {
		name  string
		id    uint64
		funds []models.Coin
		check func(error) bool
	}{
		{"missing listing", 42, []models.Coin{inj(100)}, store.IsNotFound},
		{"inactive listing", removed, []models.Coin{inj(100)}, is(contract.ErrListingInactive)},
		{"no funds", active, nil, is(contract.ErrNoFunds)},
		{"wrong denom", active, []models.Coin{{Denom: "atom", Amount: models.NewAmount(1000)}}, is(contract.ErrNoFunds)},
		{"underpaid", active, []models.Coin{inj(99)}, is(contract.ErrInsufficientFunds)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := tm.purchase("buyer", tc.id, tc.funds...)
			assert.Nil(t, res, "no transfers may be issued")
			assert.True(t, tc.check(err), "error = %v", err)
		})
	}
}

func TestPurchaseInactiveCheckedBeforeFunds(t *testing.T) {
	tm := newTestMarket(t, 5)
	id := tm.list("seller", "a", "nlp", 100)
	require.NoError(t, tm.remove("seller", id))

	_, err := tm.purchase("buyer", id)
	assert.ErrorIs(t, err, contract.ErrListingInactive)
}

func TestPurchaseFreeListing(t *testing.T) {
	tm := newTestMarket(t, 5)
	id := tm.list("seller", "a", "nlp", 0)

	res, err := tm.purchase("buyer", id, inj(0))
	require.NoError(t, err)
	assert.True(t, res.Transfers[0].Amount.IsZero())
	assert.True(t, res.Transfers[1].Amount.IsZero())
}

// ── Browse ──────────────────────────────────────────────────

func TestBrowseChainsActivePages(t *testing.T) {
	tm := newTestMarket(t, 5)
	var want []uint64
	for i := 0; i < 30; i++ {
		id := tm.list("seller", "a", "nlp", 1)
		if i%4 == 1 {
			require.NoError(t, tm.remove("seller", id))
			continue
		}
		want = append(want, id)
	}

	var got []uint64
	page := contract.Page{Limit: ptr(uint32(10))}
	for {
		ls, err := tm.m.Browse(tm.kv, page, marketplace.Filter{})
		require.NoError(t, err)
		if len(ls) == 0 {
			break
		}
		assert.LessOrEqual(t, len(ls), 10)
		got = append(got, ids(ls)...)
		page.StartAfter = ptr(ls[len(ls)-1].ID)
	}
	assert.Equal(t, want, got)
}

func TestBrowseFilters(t *testing.T) {
	tm := newTestMarket(t, 5)
	nlp := tm.list("alice", "Summarizer", "nlp", 1)
	tm.list("alice", "Painter", "vision", 1)
	translator := tm.list("bob", "Translator", "nlp", 1)

	ls, err := tm.m.Browse(tm.kv, contract.Page{}, marketplace.Filter{Category: "nlp"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{nlp, translator}, ids(ls))

	ls, err = tm.m.Browse(tm.kv, contract.Page{}, marketplace.Filter{Search: "TRANS"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{translator}, ids(ls))

	ls, err = tm.m.Browse(tm.kv, contract.Page{}, marketplace.Filter{Category: "vision", Search: "summar"})
	require.NoError(t, err)
	assert.Empty(t, ls)
}

func TestSellerListingsIncludeRemoved(t *testing.T) {
	tm := newTestMarket(t, 5)
	a1 := tm.list("alice", "one", "nlp", 1)
	tm.list("bob", "two", "nlp", 1)
	a3 := tm.list("alice", "three", "nlp", 1)
	require.NoError(t, tm.remove("alice", a1))

	ls, err := tm.m.SellerListings(tm.kv, "alice", contract.Page{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{a1, a3}, ids(ls))

	ls, err = tm.m.SellerListings(tm.kv, "alice", contract.Page{StartAfter: ptr(a1)})
	require.NoError(t, err)
	assert.Equal(t, []uint64{a3}, ids(ls))
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}
