package admin

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refractlabs/refract-core/internal/domain"
	"github.com/refractlabs/refract-core/internal/usecase/book"
	"github.com/refractlabs/refract-core/internal/usecase/reflection"
	"github.com/refractlabs/refract-core/internal/usecase/registry"
	"github.com/refractlabs/refract-core/internal/usecase/transfer"
	"github.com/refractlabs/refract-core/internal/usecase/trigger"
)

func addr(b byte) domain.Address {
	var a domain.Address
	a[19] = b
	return a
}

var (
	owner    = addr(0x01)
	stranger = addr(0x02)
	pool     = addr(0x09)
)

func newAdmin(t *testing.T) (*Service, *domain.SingleOwner, *transfer.Service) {
	t.Helper()
	bk := book.New()
	reg := registry.New()
	refl := reflection.New(bk, reg, true)
	trig := trigger.New(domain.TriggerParams{
		ConfettiModulo:   100,
		ReverseDayModulo: 7,
		LuckyDropModulo:  1000,
		LuckyPayoutBps:   100,
		LuckyMaxPayout:   uint256.NewInt(50_000),
	})
	ledger := transfer.NewService(transfer.Params{
		Book:        bk,
		Registry:    reg,
		Reflections: refl,
		Triggers:    trig,
		Pool:        pool,
	})
	auth := domain.NewSingleOwner(owner)
	return NewService(ledger, auth), auth, ledger
}

func TestAdmin_RejectsNonOwner(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAdmin(t)

	assert.ErrorIs(t, svc.SetTriggerMode(ctx, stranger, domain.TriggerConfetti), domain.ErrNotAuthorized)
	assert.ErrorIs(t, svc.SetExcludedFromTax(ctx, stranger, addr(5), true), domain.ErrNotAuthorized)
	assert.ErrorIs(t, svc.ClearScheduledWindow(ctx, stranger), domain.ErrNotAuthorized)
	assert.ErrorIs(t, svc.SetTaxRates(ctx, stranger, nil), domain.ErrNotAuthorized)
}

func TestAdmin_OwnerCallsDelegate(t *testing.T) {
	ctx := context.Background()
	svc, _, ledger := newAdmin(t)

	components := []domain.TaxComponent{
		{Name: "pool", RateBps: 50, Kind: domain.DestinationSelfPool},
	}
	require.NoError(t, svc.SetTaxRates(ctx, owner, components))
	assert.Equal(t, uint64(50), ledger.Policy().TotalRateBps())

	require.NoError(t, svc.SetTriggerMode(ctx, owner, domain.TriggerConfetti))
	assert.Equal(t, domain.TriggerConfetti, ledger.TriggerMode())

	require.NoError(t, svc.SetExcludedFromTax(ctx, owner, addr(5), true))
	assert.True(t, ledger.TaxExcluded(addr(5)))

	require.NoError(t, svc.SetExcludedFromReflections(ctx, owner, addr(5), true))
	assert.True(t, ledger.ReflectionExcluded(addr(5)))

	now := time.Now()
	require.NoError(t, svc.ScheduleTriggerWindow(ctx, owner, domain.TriggerLuckyDrop, now, now.Add(time.Hour)))
	require.NoError(t, svc.ClearScheduledWindow(ctx, owner))
}

func TestAdmin_ValidationErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newAdmin(t)

	over := []domain.TaxComponent{
		{Name: "pool", RateBps: 1001, Kind: domain.DestinationSelfPool},
	}
	assert.ErrorIs(t, svc.SetTaxRates(ctx, owner, over), domain.ErrRateCapExceeded)

	bad := domain.TriggerParams{ConfettiModulo: 0}
	assert.ErrorIs(t, svc.SetTriggerParameters(ctx, owner, bad), domain.ErrParameterRejected)
}

func TestAdmin_TransferOwnership(t *testing.T) {
	ctx := context.Background()
	svc, auth, _ := newAdmin(t)

	assert.ErrorIs(t, svc.TransferOwnership(ctx, stranger, addr(7)), domain.ErrNotAuthorized)
	assert.ErrorIs(t, svc.TransferOwnership(ctx, owner, domain.ZeroAddress), domain.ErrZeroAddressRejected)

	require.NoError(t, svc.TransferOwnership(ctx, owner, addr(7)))
	assert.Equal(t, addr(7), auth.Owner())

	// The old key is dead; the new one works.
	assert.ErrorIs(t, svc.SetTriggerMode(ctx, owner, domain.TriggerOff), domain.ErrNotAuthorized)
	assert.NoError(t, svc.SetTriggerMode(ctx, addr(7), domain.TriggerOff))
}
