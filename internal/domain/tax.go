package domain

import (
	"fmt"
)

// BpsDenominator is the basis-point scale: rates are parts per 10,000
const BpsDenominator = 10_000

// TaxRateCapBps caps the combined rate of all tax components at 10%
const TaxRateCapBps = 1_000

// DestinationKind tells the splitter where a tax component's units go
type DestinationKind string

const (
	// DestinationWallet credits a configured wallet address.
	DestinationWallet DestinationKind = "WALLET"

	// DestinationUnspendable credits the zero address (burn).
	DestinationUnspendable DestinationKind = "UNSPENDABLE"

	// DestinationSelfPool credits the ledger's own pool account.
	DestinationSelfPool DestinationKind = "SELF_POOL"

	// DestinationReflection removes the component from circulating reflected
	// supply instead of crediting any account.
	DestinationReflection DestinationKind = "REFLECTION"
)

// TaxComponent is one named cut of a taxed transfer
type TaxComponent struct {
	Name    string
	RateBps uint64
	Kind    DestinationKind
	Wallet  Address // destination address, WALLET kind only
}

// TaxPolicy is the ordered list of components applied to every taxable
// transfer. Order is load-bearing: component movements and the tax-applied
// notification follow declaration order.
type TaxPolicy struct {
	Components []TaxComponent
}

// TotalRateBps returns the combined rate of all components
func (p TaxPolicy) TotalRateBps() uint64 {
	var total uint64
	for _, c := range p.Components {
		total += c.RateBps
	}
	return total
}

// HasReflection reports whether any component redistributes via reflections
func (p TaxPolicy) HasReflection() bool {
	for _, c := range p.Components {
		if c.Kind == DestinationReflection {
			return true
		}
	}
	return false
}

// Validate ensures the policy adheres to domain rules
func (p TaxPolicy) Validate() error {
	for _, c := range p.Components {
		if c.Name == "" {
			return fmt.Errorf("tax component name cannot be empty: %w", ErrParameterRejected)
		}
		if c.RateBps > TaxRateCapBps {
			return fmt.Errorf("component %q rate %d bps over %d bps cap: %w",
				c.Name, c.RateBps, TaxRateCapBps, ErrRateCapExceeded)
		}
		switch c.Kind {
		case DestinationWallet:
			if c.Wallet.IsZero() {
				return fmt.Errorf("component %q destination: %w", c.Name, ErrZeroAddressRejected)
			}
		case DestinationUnspendable, DestinationSelfPool, DestinationReflection:
		default:
			return fmt.Errorf("component %q: unknown destination kind %q: %w",
				c.Name, c.Kind, ErrParameterRejected)
		}
	}
	if total := p.TotalRateBps(); total > TaxRateCapBps {
		return fmt.Errorf("total rate %d bps over %d bps cap: %w",
			total, TaxRateCapBps, ErrRateCapExceeded)
	}
	return nil
}
