package domain

import "errors"

// Sentinel errors forming the ledger error taxonomy. Callers wrap them with
// fmt.Errorf("...: %w", ...) and match with errors.Is.
var (
	// ErrInsufficientBalance rejects a movement the sender cannot cover.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrRateCapExceeded rejects a tax policy whose combined rate is over the cap.
	ErrRateCapExceeded = errors.New("total tax rate exceeds cap")

	// ErrZeroAddressRejected rejects the zero address where a spendable
	// destination or principal is required.
	ErrZeroAddressRejected = errors.New("zero address rejected")

	// ErrNoOpRejected rejects a reflection-exclusion toggle whose value is
	// already in effect.
	ErrNoOpRejected = errors.New("no-op rejected")

	// ErrInvalidWindow rejects a scheduled window with a non-positive span or
	// an end in the past.
	ErrInvalidWindow = errors.New("invalid scheduled window")

	// ErrParameterRejected rejects an out-of-range trigger or tax parameter.
	ErrParameterRejected = errors.New("parameter rejected")

	// ErrNotAuthorized rejects a caller that does not hold the owner capability.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrAlreadyMinted rejects a second genesis mint.
	ErrAlreadyMinted = errors.New("supply already minted")
)
