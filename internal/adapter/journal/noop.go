package journal

import (
	"context"

	"github.com/refractlabs/refract-core/internal/domain"
)

// Noop discards every entry. It serves setups that run the ledger purely for
// its balances and want no journal at all.
type Noop struct{}

func (Noop) Record(context.Context, domain.Entry) error {
	return nil
}

func (Noop) Recent(context.Context, int) ([]domain.Entry, error) {
	return nil, nil
}
