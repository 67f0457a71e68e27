package reflection

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refractlabs/refract-core/internal/domain"
	"github.com/refractlabs/refract-core/internal/usecase/book"
	"github.com/refractlabs/refract-core/internal/usecase/registry"
)

func addr(b byte) domain.Address {
	var a domain.Address
	a[19] = b
	return a
}

type harness struct {
	book     *book.Book
	registry *registry.Registry
	engine   *Engine
}

func newHarness(t *testing.T, enabled bool, supply uint64) *harness {
	t.Helper()
	h := &harness{book: book.New(), registry: registry.New()}
	h.engine = New(h.book, h.registry, enabled)
	require.NoError(t, h.book.Mint(addr(1), uint256.NewInt(supply)))
	h.engine.OnMint(addr(1))
	return h
}

// move replays what the facade does for one raw movement: capture the rate,
// settle direct entries for direct-tracked parties, then the reflected ones.
func (h *harness) move(t *testing.T, from, to domain.Address, amount uint64) {
	t.Helper()
	st, err := h.book.Begin()
	require.NoError(t, err)
	defer st.Close()

	rate := h.engine.CurrentRate()
	value := uint256.NewInt(amount)
	if h.engine.TracksDirect(from) {
		require.NoError(t, st.Debit(from, value))
	}
	if h.engine.TracksDirect(to) {
		st.Credit(to, value)
	}
	desync := h.engine.ApplyMove(from, to, value, rate)
	assert.Nil(t, desync)
}

func (h *harness) setExcluded(t *testing.T, account domain.Address, excluded bool) error {
	t.Helper()
	st, err := h.book.Begin()
	require.NoError(t, err)
	defer st.Close()
	return h.engine.SetExcluded(st, account, excluded)
}

func TestOnMint_SeedsExactRate(t *testing.T) {
	h := newHarness(t, true, 1000)

	// rTotal is the largest multiple of the supply below 2^256, so the
	// genesis rate divides it exactly and the owner reads the full supply.
	max := new(uint256.Int).SetAllOne()
	rem := new(uint256.Int).Mod(max, uint256.NewInt(1000))
	wantTotal := new(uint256.Int).Sub(max, rem)
	assert.Equal(t, wantTotal, h.engine.RTotal())
	assert.Equal(t, uint256.NewInt(1000), h.engine.BalanceOf(addr(1)))
	assert.False(t, h.engine.CurrentRate().IsZero())
}

func TestBalanceOf_DisabledReadsDirectLedger(t *testing.T) {
	h := newHarness(t, false, 1000)

	assert.True(t, h.engine.TracksDirect(addr(1)))
	assert.True(t, h.engine.TracksDirect(addr(2)))
	assert.Equal(t, uint256.NewInt(1000), h.engine.BalanceOf(addr(1)))
	assert.True(t, h.engine.RTotal().IsZero(), "no reflected ledger is seeded")
}

func TestBalanceOf_UnmintedReadsZero(t *testing.T) {
	e := New(book.New(), registry.New(), true)
	assert.True(t, e.CurrentRate().IsZero())
	assert.True(t, e.BalanceOf(addr(1)).IsZero())
}

func TestApplyMove_KeepsDerivedBalancesExact(t *testing.T) {
	h := newHarness(t, true, 1000)
	h.move(t, addr(1), addr(2), 200)

	assert.Equal(t, uint256.NewInt(800), h.engine.BalanceOf(addr(1)))
	assert.Equal(t, uint256.NewInt(200), h.engine.BalanceOf(addr(2)))
}

func TestApplyReflectTax_RedistributesToIncluded(t *testing.T) {
	h := newHarness(t, true, 1000)
	h.move(t, addr(1), addr(2), 200)

	rate := h.engine.CurrentRate()
	desync := h.engine.ApplyReflectTax(addr(1), uint256.NewInt(10), rate)
	assert.Nil(t, desync)

	// 10 units left circulation: 1000/990 of every remaining holding.
	assert.Equal(t, uint256.NewInt(202), h.engine.BalanceOf(addr(2)), "uninvolved holder gains")
	assert.Equal(t, uint256.NewInt(797), h.engine.BalanceOf(addr(1)))

	sum := new(uint256.Int).Add(h.engine.BalanceOf(addr(1)), h.engine.BalanceOf(addr(2)))
	assert.Equal(t, uint256.NewInt(999), sum, "one unit of floor loss across two holders")
}

func TestSetExcluded_TransitionKeepsBalance(t *testing.T) {
	h := newHarness(t, true, 1000)
	h.move(t, addr(1), addr(2), 300)

	require.NoError(t, h.setExcluded(t, addr(2), true))
	assert.True(t, h.engine.IsExcluded(addr(2)))
	assert.Equal(t, uint256.NewInt(300), h.book.Balance(addr(2)), "derived balance frozen into the direct ledger")
	assert.Equal(t, uint256.NewInt(300), h.engine.BalanceOf(addr(2)))
	assert.Equal(t, uint256.NewInt(700), h.engine.BalanceOf(addr(1)), "bystander unchanged by the transition")

	require.NoError(t, h.setExcluded(t, addr(2), false))
	assert.False(t, h.engine.IsExcluded(addr(2)))
	assert.Equal(t, uint256.NewInt(300), h.engine.BalanceOf(addr(2)))
	assert.True(t, h.book.Balance(addr(2)).IsZero(), "direct entry handed back to the reflected ledger")
}

func TestSetExcluded_RejectsNoOpAndDisabled(t *testing.T) {
	h := newHarness(t, true, 1000)
	assert.ErrorIs(t, h.setExcluded(t, addr(2), false), domain.ErrNoOpRejected)

	disabled := newHarness(t, false, 1000)
	assert.ErrorIs(t, disabled.setExcluded(t, addr(2), true), domain.ErrParameterRejected)
}

func TestCurrentRate_AllWealthExcludedFallsBack(t *testing.T) {
	h := newHarness(t, true, 1000)
	require.NoError(t, h.setExcluded(t, addr(1), true))

	// Circulating supplies collapse to dust; the rate falls back to the
	// unadjusted ratio instead of dividing toward zero.
	unadjusted := new(uint256.Int).Div(h.engine.RTotal(), uint256.NewInt(1000))
	assert.Equal(t, unadjusted, h.engine.CurrentRate())
	assert.Equal(t, uint256.NewInt(1000), h.engine.BalanceOf(addr(1)))
	assert.True(t, h.engine.BalanceOf(addr(2)).IsZero())
}

func TestApplyMove_AbsorbsSenderDeficit(t *testing.T) {
	h := newHarness(t, true, 1000)
	before := h.engine.RTotal()

	rate := h.engine.CurrentRate()
	desync := h.engine.ApplyMove(addr(7), addr(8), uint256.NewInt(50), rate)
	require.NotNil(t, desync)
	assert.Equal(t, addr(7), desync.Account)

	deficit := new(uint256.Int).Mul(uint256.NewInt(50), rate)
	assert.Equal(t, deficit.Dec(), desync.Deficit)
	assert.Equal(t, new(uint256.Int).Add(before, deficit), h.engine.RTotal(),
		"the global total grows by the uncovered credit")

	// The rate rose to 1050/1000: every holder funds the desynced credit
	// and the books still read at or under the supply.
	assert.Equal(t, uint256.NewInt(47), h.engine.BalanceOf(addr(8)))
	assert.Equal(t, uint256.NewInt(952), h.engine.BalanceOf(addr(1)))
	sum := new(uint256.Int).Add(h.engine.BalanceOf(addr(1)), h.engine.BalanceOf(addr(8)))
	assert.True(t, sum.Lt(uint256.NewInt(1001)), "sum %s stays bounded by the supply", sum.Dec())
}

func TestApplyMove_ZeroAmountOrRateIsNoOp(t *testing.T) {
	h := newHarness(t, true, 1000)
	before := h.engine.RTotal()

	assert.Nil(t, h.engine.ApplyMove(addr(1), addr(2), uint256.NewInt(0), h.engine.CurrentRate()))
	assert.Nil(t, h.engine.ApplyMove(addr(1), addr(2), uint256.NewInt(5), uint256.NewInt(0)))
	assert.Equal(t, before, h.engine.RTotal())
	assert.Equal(t, uint256.NewInt(1000), h.engine.BalanceOf(addr(1)))
}
