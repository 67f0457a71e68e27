package domain

import "fmt"

// SingleOwner is the single-key Authorizer backend: one address holds the
// owner capability until it transfers it away.
type SingleOwner struct {
	owner Address
}

// NewSingleOwner creates a SingleOwner held by owner
func NewSingleOwner(owner Address) *SingleOwner {
	return &SingleOwner{owner: owner}
}

// Authorize reports whether caller is the current owner
func (s *SingleOwner) Authorize(caller Address) bool {
	return !s.owner.IsZero() && caller == s.owner
}

// Transfer hands the capability to newOwner. The zero address is rejected:
// ownership is renounced by transferring to a burn-controlled principal, not
// by zeroing the owner.
func (s *SingleOwner) Transfer(caller, newOwner Address) error {
	if caller != s.owner {
		return fmt.Errorf("ownership transfer: %w", ErrNotAuthorized)
	}
	if newOwner.IsZero() {
		return fmt.Errorf("new owner: %w", ErrZeroAddressRejected)
	}
	s.owner = newOwner
	return nil
}

// Owner returns the current owner address
func (s *SingleOwner) Owner() Address {
	return s.owner
}
