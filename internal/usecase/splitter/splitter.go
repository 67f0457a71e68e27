package splitter

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/refractlabs/refract-core/internal/domain"
)

// Cut is one computed component movement of a taxed transfer
type Cut struct {
	Component domain.TaxComponent
	Amount    *uint256.Int
}

// Applies reports whether a transfer is split at all: the gross must be
// positive, the policy must carry a rate, and neither party may be
// tax-excluded. A transfer that does not apply settles as one untaxed
// movement of the full amount.
func Applies(amount *uint256.Int, policy domain.TaxPolicy, senderExcluded, recipientExcluded bool) bool {
	if amount == nil || amount.IsZero() {
		return false
	}
	if policy.TotalRateBps() == 0 {
		return false
	}
	return !senderExcluded && !recipientExcluded
}

// Split computes the component cuts of a gross amount.
// Logic:
//  1. Each component takes floor(gross · rateBps / 10000), in declared order
//  2. No component recomputes from a remainder; rounding dust stays in net
//  3. Net is the gross minus every cut and goes to the transfer recipient
//
// Safety: the cuts plus net reconstruct the gross exactly.
func Split(amount *uint256.Int, policy domain.TaxPolicy) ([]Cut, *uint256.Int, error) {
	if amount == nil {
		return nil, nil, errors.New("split amount cannot be nil")
	}

	denominator := uint256.NewInt(domain.BpsDenominator)
	cuts := make([]Cut, 0, len(policy.Components))
	taken := uint256.NewInt(0)

	for _, component := range policy.Components {
		cut, overflow := new(uint256.Int).MulDivOverflow(
			amount, uint256.NewInt(component.RateBps), denominator)
		if overflow {
			return nil, nil, fmt.Errorf("component %q cut overflows: %w",
				component.Name, domain.ErrParameterRejected)
		}
		taken.Add(taken, cut)
		cuts = append(cuts, Cut{Component: component, Amount: cut})
	}

	if taken.Gt(amount) {
		return nil, nil, fmt.Errorf("cuts %s exceed gross %s: %w",
			taken.Dec(), amount.Dec(), domain.ErrRateCapExceeded)
	}
	net := new(uint256.Int).Sub(amount, taken)

	// Safety check: cuts and net must reconstruct the gross exactly.
	total := net.Clone()
	for _, c := range cuts {
		total.Add(total, c.Amount)
	}
	if !total.Eq(amount) {
		return nil, nil, errors.New("split does not reconstruct the gross amount")
	}

	return cuts, net, nil
}
