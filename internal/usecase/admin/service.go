package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/refractlabs/refract-core/internal/domain"
	"github.com/refractlabs/refract-core/internal/usecase/transfer"
)

// Service is the owner-gated surface of the ledger. Every operation checks
// the caller against the Authorizer before delegating to the facade; the
// caller's identity comes from the transport layer and is never trusted
// beyond that check.
type Service struct {
	ledger *transfer.Service
	auth   domain.Authorizer
}

// NewService creates the admin surface over a ledger facade and Authorizer
func NewService(ledger *transfer.Service, auth domain.Authorizer) *Service {
	return &Service{ledger: ledger, auth: auth}
}

func (s *Service) authorize(caller domain.Address) error {
	if !s.auth.Authorize(caller) {
		return fmt.Errorf("caller %s: %w", caller, domain.ErrNotAuthorized)
	}
	return nil
}

// SetTaxRates replaces the whole tax policy
func (s *Service) SetTaxRates(ctx context.Context, caller domain.Address, components []domain.TaxComponent) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	return s.ledger.SetTaxPolicy(ctx, domain.TaxPolicy{Components: components})
}

// SetDestinationWallet redirects one WALLET component
func (s *Service) SetDestinationWallet(ctx context.Context, caller domain.Address, component string, wallet domain.Address) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	return s.ledger.SetDestinationWallet(ctx, component, wallet)
}

// SetExcludedFromTax toggles an account's tax exclusion
func (s *Service) SetExcludedFromTax(ctx context.Context, caller, account domain.Address, excluded bool) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	return s.ledger.SetTaxExcluded(ctx, account, excluded)
}

// SetExcludedFromReflections toggles an account's reflection exclusion
func (s *Service) SetExcludedFromReflections(ctx context.Context, caller, account domain.Address, excluded bool) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	return s.ledger.SetReflectionExcluded(ctx, account, excluded)
}

// SetTriggerMode replaces the configured trigger mode
func (s *Service) SetTriggerMode(ctx context.Context, caller domain.Address, mode domain.TriggerMode) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	return s.ledger.SetTriggerMode(ctx, mode)
}

// SetTriggerParameters replaces the trigger thresholds
func (s *Service) SetTriggerParameters(ctx context.Context, caller domain.Address, params domain.TriggerParams) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	return s.ledger.SetTriggerParams(ctx, params)
}

// ScheduleTriggerWindow installs the mode-override window
func (s *Service) ScheduleTriggerWindow(ctx context.Context, caller domain.Address, mode domain.TriggerMode, start, end time.Time) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	return s.ledger.ScheduleTriggerWindow(ctx, mode, start, end)
}

// ClearScheduledWindow removes the mode-override window
func (s *Service) ClearScheduledWindow(ctx context.Context, caller domain.Address) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	return s.ledger.ClearTriggerWindow(ctx)
}

// TransferOwnership hands the owner capability to a new principal. The
// Authorizer enforces that only the current holder may hand it over.
func (s *Service) TransferOwnership(ctx context.Context, caller, newOwner domain.Address) error {
	if err := s.auth.Transfer(caller, newOwner); err != nil {
		return err
	}
	s.ledger.RecordOwnershipTransfer(ctx, newOwner)
	return nil
}
