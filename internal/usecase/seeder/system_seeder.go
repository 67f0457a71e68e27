package seeder

import (
	"context"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/refractlabs/refract-core/internal/domain"
	"github.com/refractlabs/refract-core/internal/usecase/transfer"
)

// GenesisSpec describes the one-time ledger initialization
type GenesisSpec struct {
	Owner         domain.Address
	Supply        *uint256.Int
	Policy        domain.TaxPolicy
	TriggerMode   domain.TriggerMode
	TriggerParams domain.TriggerParams
}

// SystemSeeder applies the genesis state at startup. Seeding is idempotent:
// an already-minted ledger keeps its balances and only the runtime
// configuration (policy, trigger settings) is reapplied.
type SystemSeeder struct {
	ledger *transfer.Service
	logger *zap.Logger
}

// NewSystemSeeder creates a new SystemSeeder instance
func NewSystemSeeder(ledger *transfer.Service, logger *zap.Logger) *SystemSeeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemSeeder{ledger: ledger, logger: logger}
}

// Seed mints the supply if needed, registers the system accounts, and
// applies the starting configuration.
func (s *SystemSeeder) Seed(ctx context.Context, spec GenesisSpec) error {
	if s.ledger.Minted() {
		s.logger.Info("ledger already minted, mint skipped")
	} else {
		if err := s.ledger.Genesis(ctx, spec.Owner, spec.Supply); err != nil {
			return err
		}
		if err := s.registerSystemAccounts(ctx); err != nil {
			return err
		}
	}

	if err := s.ledger.SetTriggerParams(ctx, spec.TriggerParams); err != nil {
		return err
	}
	if spec.TriggerMode != "" {
		if err := s.ledger.SetTriggerMode(ctx, spec.TriggerMode); err != nil {
			return err
		}
	}
	if len(spec.Policy.Components) > 0 {
		if err := s.ledger.SetTaxPolicy(ctx, spec.Policy); err != nil {
			return err
		}
	}

	s.logger.Info("ledger seeded",
		zap.String("owner", spec.Owner.Hex()),
		zap.String("supply", s.ledger.TotalSupply().Dec()),
		zap.String("trigger_mode", string(spec.TriggerMode)))
	return nil
}

// registerSystemAccounts keeps the pool and the burn address out of both
// registries: neither pays tax, and holding them out of reflections keeps
// pooled and burned wealth from earning redistribution.
func (s *SystemSeeder) registerSystemAccounts(ctx context.Context) error {
	system := []domain.Address{s.ledger.PoolAccount(), domain.ZeroAddress}
	for _, account := range system {
		if err := s.ledger.SetTaxExcluded(ctx, account, true); err != nil {
			return err
		}
		if !s.ledger.ReflectionEnabled() {
			continue
		}
		if err := s.ledger.SetReflectionExcluded(ctx, account, true); err != nil {
			return err
		}
	}
	return nil
}
