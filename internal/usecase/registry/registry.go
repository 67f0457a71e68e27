package registry

import (
	"github.com/refractlabs/refract-core/internal/domain"
)

// Registry holds the two independent exclusion memberships per account.
// Reflection-excluded accounts keep their insertion order so that rate
// computation iterates them deterministically.
type Registry struct {
	taxExcluded        map[domain.Address]struct{}
	reflectionExcluded map[domain.Address]struct{}
	reflectionOrder    []domain.Address
}

// New creates an empty Registry
func New() *Registry {
	return &Registry{
		taxExcluded:        make(map[domain.Address]struct{}),
		reflectionExcluded: make(map[domain.Address]struct{}),
	}
}

// TaxExcluded reports whether account is excluded from tax
func (r *Registry) TaxExcluded(account domain.Address) bool {
	_, ok := r.taxExcluded[account]
	return ok
}

// SetTaxExcluded toggles tax exclusion. It reports whether the membership
// actually changed; setting an already-set value is a silent no-op.
func (r *Registry) SetTaxExcluded(account domain.Address, excluded bool) bool {
	if excluded == r.TaxExcluded(account) {
		return false
	}
	if excluded {
		r.taxExcluded[account] = struct{}{}
	} else {
		delete(r.taxExcluded, account)
	}
	return true
}

// ReflectionExcluded reports whether account is excluded from reflections
func (r *Registry) ReflectionExcluded(account domain.Address) bool {
	_, ok := r.reflectionExcluded[account]
	return ok
}

// SetReflectionExcluded toggles reflection exclusion and reports whether the
// membership changed. Removal preserves the relative order of the remaining
// entries.
func (r *Registry) SetReflectionExcluded(account domain.Address, excluded bool) bool {
	if excluded == r.ReflectionExcluded(account) {
		return false
	}
	if excluded {
		r.reflectionExcluded[account] = struct{}{}
		r.reflectionOrder = append(r.reflectionOrder, account)
		return true
	}
	delete(r.reflectionExcluded, account)
	for i, a := range r.reflectionOrder {
		if a == account {
			r.reflectionOrder = append(r.reflectionOrder[:i], r.reflectionOrder[i+1:]...)
			break
		}
	}
	return true
}

// ReflectionExclusionList returns the reflection-excluded accounts in
// insertion order. Callers must not mutate the returned slice.
func (r *Registry) ReflectionExclusionList() []domain.Address {
	return r.reflectionOrder
}

// ReflectionExclusionCount returns the size of the reflection-excluded set
func (r *Registry) ReflectionExclusionCount() int {
	return len(r.reflectionOrder)
}
