package domain

import "context"

// Journal is the sink for observable ledger records
type Journal interface {
	// Record appends one entry. Implementations must not mutate it.
	Record(ctx context.Context, entry Entry) error

	// Recent returns up to limit entries, newest first. A non-positive limit
	// returns every retained entry.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Authorizer answers whether a caller holds the owner capability.
// The backend may be a single key, a multisig, or a delay-gated controller;
// the ledger only consumes this contract.
type Authorizer interface {
	// Authorize reports whether caller may invoke owner-gated operations
	Authorize(caller Address) bool

	// Transfer hands the owner capability to a new principal.
	// Only the current holder may transfer it.
	Transfer(caller, newOwner Address) error
}
