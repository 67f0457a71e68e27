package reflection

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/refractlabs/refract-core/internal/domain"
	"github.com/refractlabs/refract-core/internal/usecase/book"
	"github.com/refractlabs/refract-core/internal/usecase/registry"
)

// Engine maintains the reflected-unit ledger that rides alongside the direct
// ledger: a reflected entry per account and a global reflected total. The
// ratio of circulating reflected units to circulating direct units is the
// rate that derives every reflection-included holder's observable balance,
// so shrinking the global total redistributes value to all included holders
// in O(1).
//
// Reflected entries are maintained for every account on every movement,
// excluded ones included: the rate loop subtracts excluded accounts' entries
// from both circulating totals, and those subtractions must track the same
// movements or the totals drift apart. Exclusion only changes which ledger
// answers the balance query.
type Engine struct {
	book     *book.Book
	registry *registry.Registry

	enabled bool
	rOwned  map[domain.Address]*uint256.Int
	rTotal  *uint256.Int
}

// New creates an Engine over the direct ledger and exclusion registry.
// A disabled engine answers every balance query from the direct ledger and
// rejects exclusion transitions.
func New(b *book.Book, reg *registry.Registry, enabled bool) *Engine {
	return &Engine{
		book:     b,
		registry: reg,
		enabled:  enabled,
		rOwned:   make(map[domain.Address]*uint256.Int),
		rTotal:   uint256.NewInt(0),
	}
}

// Enabled reports whether reflection accounting is active
func (e *Engine) Enabled() bool {
	return e.enabled
}

// OnMint seeds the reflected ledger against the freshly minted supply.
// rTotal starts at MaxUint256 − (MaxUint256 mod totalSupply): the largest
// value at which the genesis rate is an exact integer, so derived balances
// carry no truncation loss until the first reflection fee.
func (e *Engine) OnMint(to domain.Address) {
	if !e.enabled {
		return
	}
	supply := e.book.TotalSupply()
	max := new(uint256.Int).SetAllOne()
	rem := new(uint256.Int).Mod(max, supply)
	e.rTotal = new(uint256.Int).Sub(max, rem)
	e.rOwned[to] = e.rTotal.Clone()
}

// RTotal returns the global reflected-unit total
func (e *Engine) RTotal() *uint256.Int {
	return e.rTotal.Clone()
}

// IsExcluded reports whether account is excluded from reflections
func (e *Engine) IsExcluded(account domain.Address) bool {
	return e.registry.ReflectionExcluded(account)
}

// TracksDirect reports whether account's observable balance lives in the
// direct ledger
func (e *Engine) TracksDirect(account domain.Address) bool {
	return !e.enabled || e.registry.ReflectionExcluded(account)
}

// CurrentRate derives circulating reflected units per circulating direct
// unit. Each reflection-excluded account's reflected entry and direct
// balance are subtracted from the respective totals; if a subtraction would
// underflow, or the remaining reflected supply is worth less than one direct
// unit (dust collapse), the unadjusted ratio is used instead. A zero
// circulating direct supply yields a zero rate.
func (e *Engine) CurrentRate() *uint256.Int {
	rSupply, tSupply := e.circulatingSupplies()
	if tSupply.IsZero() {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Div(rSupply, tSupply)
}

func (e *Engine) circulatingSupplies() (*uint256.Int, *uint256.Int) {
	rSupply := e.rTotal.Clone()
	tSupply := e.book.TotalSupply()

	for _, account := range e.registry.ReflectionExclusionList() {
		r := e.rOwnedOf(account)
		t := e.book.Balance(account)
		if r.Gt(rSupply) || t.Gt(tSupply) {
			return e.rTotal.Clone(), e.book.TotalSupply()
		}
		rSupply = new(uint256.Int).Sub(rSupply, r)
		tSupply = new(uint256.Int).Sub(tSupply, t)
	}

	if total := e.book.TotalSupply(); !total.IsZero() {
		unadjustedRate := new(uint256.Int).Div(e.rTotal, total)
		if rSupply.Lt(unadjustedRate) {
			return e.rTotal.Clone(), e.book.TotalSupply()
		}
	}
	return rSupply, tSupply
}

// BalanceOf answers the observable balance query: the direct entry for
// excluded accounts (or when the engine is disabled), the rate-derived value
// for included ones
func (e *Engine) BalanceOf(account domain.Address) *uint256.Int {
	if e.TracksDirect(account) {
		return e.book.Balance(account)
	}
	rate := e.CurrentRate()
	if rate.IsZero() {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Div(e.rOwnedOf(account), rate)
}

// ApplyMove records one raw movement in the reflected ledger at the given
// pre-movement rate. A sender whose stored reflected entry cannot cover the
// movement is desynchronized: the deficit is absorbed into the global total,
// the entry is zeroed, and the movement still settles. The returned record,
// if any, describes that absorption.
func (e *Engine) ApplyMove(from, to domain.Address, amount, rate *uint256.Int) *domain.ReflectionDesyncRecord {
	if !e.enabled || amount.IsZero() || rate.IsZero() {
		return nil
	}
	rAmount := e.reflectedAmount(amount, rate)
	desync := e.debit(from, rAmount)
	cur := e.rOwnedOf(to)
	e.rOwned[to] = new(uint256.Int).Add(cur, rAmount)
	return desync
}

// ApplyReflectTax burns a tax component out of circulating reflected supply
// at the given pre-movement rate: the sender's reflected entry and the
// global total both shrink by the component's reflected value, and no
// account is credited. For senders whose wealth lives in the direct ledger
// the caller debits the direct entry separately; either way the component's
// worth leaves circulation and every included holder's derived balance rises.
func (e *Engine) ApplyReflectTax(from domain.Address, amount, rate *uint256.Int) *domain.ReflectionDesyncRecord {
	if !e.enabled || amount.IsZero() || rate.IsZero() {
		return nil
	}
	rAmount := e.reflectedAmount(amount, rate)
	desync := e.debit(from, rAmount)
	if e.rTotal.Lt(rAmount) {
		e.rTotal = uint256.NewInt(0)
	} else {
		e.rTotal = new(uint256.Int).Sub(e.rTotal, rAmount)
	}
	return desync
}

// SetExcluded performs the exclude/include transition without a balance
// discontinuity. Same-value calls are rejected: every call re-snapshots the
// reflected entry, so repeating one is not a harmless retry.
func (e *Engine) SetExcluded(st *book.Settlement, account domain.Address, excluded bool) error {
	if !e.enabled {
		return fmt.Errorf("reflection accounting disabled: %w", domain.ErrParameterRejected)
	}
	if e.registry.ReflectionExcluded(account) == excluded {
		return fmt.Errorf("reflection exclusion of %s already %t: %w",
			account, excluded, domain.ErrNoOpRejected)
	}

	if excluded {
		// Freeze the derived balance into the direct ledger, round the
		// reflected entry down to the matching whole-unit snapshot, then add
		// the account to the exclusion loop. The global total stays put: the
		// loop subtracts this holder from both circulating totals from now on.
		rate := e.CurrentRate()
		direct := uint256.NewInt(0)
		if !rate.IsZero() {
			direct = new(uint256.Int).Div(e.rOwnedOf(account), rate)
		}
		st.SetBalance(account, direct)
		e.rOwned[account] = new(uint256.Int).Mul(direct, rate)
		e.registry.SetReflectionExcluded(account, true)
		return nil
	}

	// Re-derive the reflected entry from the frozen direct balance while the
	// account is still inside the exclusion loop, then hand balance authority
	// back to the reflected ledger and zero the direct entry. Adjusting the
	// global total here would double-count: membership alone governs the rate.
	rate := e.CurrentRate()
	direct := e.book.Balance(account)
	e.rOwned[account] = e.reflectedAmount(direct, rate)
	e.registry.SetReflectionExcluded(account, false)
	st.SetBalance(account, uint256.NewInt(0))
	return nil
}

// reflectedAmount converts direct units at rate, falling back to the
// unadjusted floor rate in the corner where a collapsed circulating supply
// pushes the adjusted rate high enough to overflow the product.
func (e *Engine) reflectedAmount(amount, rate *uint256.Int) *uint256.Int {
	rAmount, overflow := new(uint256.Int).MulOverflow(amount, rate)
	if overflow {
		supply := e.book.TotalSupply()
		if supply.IsZero() {
			return uint256.NewInt(0)
		}
		floorRate := new(uint256.Int).Div(e.rTotal, supply)
		rAmount = new(uint256.Int).Mul(amount, floorRate)
	}
	return rAmount
}

func (e *Engine) debit(account domain.Address, rAmount *uint256.Int) *domain.ReflectionDesyncRecord {
	cur := e.rOwnedOf(account)
	if cur.Lt(rAmount) {
		// The credit side of this movement lands in full, so the global
		// total must grow by the uncovered part or the entries would sum
		// past it and derived balances would inflate over the supply.
		deficit := new(uint256.Int).Sub(rAmount, cur)
		grown, overflow := new(uint256.Int).AddOverflow(e.rTotal, deficit)
		if overflow {
			grown = new(uint256.Int).SetAllOne()
		}
		e.rTotal = grown
		e.rOwned[account] = uint256.NewInt(0)
		return &domain.ReflectionDesyncRecord{Account: account, Deficit: deficit.Dec()}
	}
	e.rOwned[account] = new(uint256.Int).Sub(cur, rAmount)
	return nil
}

func (e *Engine) rOwnedOf(account domain.Address) *uint256.Int {
	if r, ok := e.rOwned[account]; ok {
		return r
	}
	return uint256.NewInt(0)
}
