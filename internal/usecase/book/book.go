package book

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/refractlabs/refract-core/internal/domain"
)

// Book is the direct ledger: account → unit balance plus the fixed total
// supply established once at genesis. Every balance change flows through a
// Settlement, the capability token for the raw movement primitives.
type Book struct {
	balances map[domain.Address]*uint256.Int
	supply   *uint256.Int
	minted   bool

	known      map[domain.Address]struct{}
	knownOrder []domain.Address

	inSettlement bool
}

// New creates an empty, unminted Book
func New() *Book {
	return &Book{
		balances: make(map[domain.Address]*uint256.Int),
		supply:   uint256.NewInt(0),
		known:    make(map[domain.Address]struct{}),
	}
}

// Mint establishes the total supply and credits it to one account. It is
// permitted exactly once, at genesis.
func (b *Book) Mint(to domain.Address, amount *uint256.Int) error {
	if b.minted {
		return domain.ErrAlreadyMinted
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("genesis supply must be positive: %w", domain.ErrParameterRejected)
	}
	b.supply = amount.Clone()
	b.balances[to] = amount.Clone()
	b.minted = true
	b.touch(to)
	return nil
}

// Minted reports whether the genesis mint has happened
func (b *Book) Minted() bool {
	return b.minted
}

// TotalSupply returns the fixed supply constant
func (b *Book) TotalSupply() *uint256.Int {
	return b.supply.Clone()
}

// Balance returns the direct-ledger entry for account. For accounts whose
// wealth is tracked in reflected units this is a bookkeeping shadow, not the
// observable balance; resolve those through the reflection engine.
func (b *Book) Balance(account domain.Address) *uint256.Int {
	if bal, ok := b.balances[account]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

// KnownAccounts returns every account the ledger has ever seen, in first-seen
// order
func (b *Book) KnownAccounts() []domain.Address {
	out := make([]domain.Address, len(b.knownOrder))
	copy(out, b.knownOrder)
	return out
}

// Begin opens a Settlement. At most one settlement may be open: a second
// Begin during an open settlement means a sub-movement tried to re-enter the
// top-level transfer path, which must never happen.
func (b *Book) Begin() (*Settlement, error) {
	if b.inSettlement {
		return nil, errors.New("settlement already open: re-entrant transfer rejected")
	}
	b.inSettlement = true
	return &Settlement{book: b}, nil
}

func (b *Book) touch(account domain.Address) {
	if _, ok := b.known[account]; ok {
		return
	}
	b.known[account] = struct{}{}
	b.knownOrder = append(b.knownOrder, account)
}

// Settlement grants access to the raw movement primitives for the duration
// of one atomic top-level call. Tax sub-movements and trigger payouts hold
// the token instead of re-entering the public transfer entry point, so
// double taxation is structurally impossible.
type Settlement struct {
	book *Book
	done bool
}

// Close ends the settlement. Further raw movements through this token panic.
func (s *Settlement) Close() {
	if s.done {
		return
	}
	s.done = true
	s.book.inSettlement = false
}

func (s *Settlement) ledger() *Book {
	if s.done {
		panic("book: use of closed settlement")
	}
	return s.book
}

// Debit removes amount from account's direct entry. A zero amount is a no-op
// that still marks the account as known.
func (s *Settlement) Debit(account domain.Address, amount *uint256.Int) error {
	b := s.ledger()
	b.touch(account)
	if amount.IsZero() {
		return nil
	}
	cur, ok := b.balances[account]
	if !ok || cur.Lt(amount) {
		return fmt.Errorf("debit %s from %s: %w", amount.Dec(), account, domain.ErrInsufficientBalance)
	}
	b.balances[account] = new(uint256.Int).Sub(cur, amount)
	return nil
}

// Credit adds amount to account's direct entry
func (s *Settlement) Credit(account domain.Address, amount *uint256.Int) {
	b := s.ledger()
	b.touch(account)
	if amount.IsZero() {
		return
	}
	cur, ok := b.balances[account]
	if !ok {
		cur = uint256.NewInt(0)
	}
	b.balances[account] = new(uint256.Int).Add(cur, amount)
}

// SetBalance overwrites account's direct entry. Used only by the reflection
// exclusion transitions, which freeze a derived balance into the direct
// ledger or zero it out when the account rejoins the reflected ledger.
func (s *Settlement) SetBalance(account domain.Address, amount *uint256.Int) {
	b := s.ledger()
	b.touch(account)
	b.balances[account] = amount.Clone()
}

// Touch marks account as known without moving units. Movements settled purely
// in reflected units never hit Debit or Credit, yet both parties still belong
// on the balance sheet.
func (s *Settlement) Touch(account domain.Address) {
	s.ledger().touch(account)
}
