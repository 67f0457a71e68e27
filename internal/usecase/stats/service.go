package stats

import (
	"sort"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/refractlabs/refract-core/internal/domain"
	"github.com/refractlabs/refract-core/internal/usecase/transfer"
)

var hundred = decimal.NewFromInt(100)

// ComponentTotal is the cumulative take of one tax component
type ComponentTotal struct {
	Component string          `json:"component"`
	Units     decimal.Decimal `json:"units"`
}

// Overview is the reporting snapshot served by the stats endpoint
type Overview struct {
	TotalSupply        decimal.Decimal    `json:"total_supply"`
	PoolBalance        decimal.Decimal    `json:"pool_balance"`
	PoolUtilizationPct decimal.Decimal    `json:"pool_utilization_pct"`
	ConfiguredRateBps  uint64             `json:"configured_rate_bps"`
	EffectiveRatePct   decimal.Decimal    `json:"effective_rate_pct"`
	CumulativeTax      []ComponentTotal   `json:"cumulative_tax"`
	TriggerMode        domain.TriggerMode `json:"trigger_mode"`
	ReflectionEnabled  bool               `json:"reflection_enabled"`
	ReflectionRateZero bool               `json:"reflection_rate_zero"`
	KnownAccounts      int                `json:"known_accounts"`
}

// Service assembles reporting views over the ledger facade
type Service struct {
	ledger *transfer.Service
}

// NewService creates the reporting service
func NewService(ledger *transfer.Service) *Service {
	return &Service{ledger: ledger}
}

// Overview builds the snapshot.
// Logic:
//  1. The effective rate averages tax over gross across the recent transfer
//     window, so truncation and exclusions show up in it; the configured
//     rate is just the component sum.
//  2. Cumulative component totals follow declared policy order, with
//     retired components appended alphabetically.
func (s *Service) Overview() *Overview {
	supply := toDecimal(s.ledger.TotalSupply())
	pool := toDecimal(s.ledger.PoolBalance())

	utilization := decimal.Zero
	if supply.IsPositive() {
		utilization = pool.Div(supply).Mul(hundred).Round(4)
	}

	var grossSum, taxSum decimal.Decimal
	for _, stat := range s.ledger.RecentTransfers() {
		grossSum = grossSum.Add(toDecimal(stat.Gross))
		taxSum = taxSum.Add(toDecimal(stat.Tax))
	}
	effective := decimal.Zero
	if grossSum.IsPositive() {
		effective = taxSum.Div(grossSum).Mul(hundred).Round(4)
	}

	policy := s.ledger.Policy()
	totals := s.ledger.CumulativeTax()
	cumulative := make([]ComponentTotal, 0, len(totals))
	for _, c := range policy.Components {
		units, ok := totals[c.Name]
		if !ok {
			continue
		}
		cumulative = append(cumulative, ComponentTotal{Component: c.Name, Units: toDecimal(units)})
		delete(totals, c.Name)
	}
	retired := make([]string, 0, len(totals))
	for name := range totals {
		retired = append(retired, name)
	}
	sort.Strings(retired)
	for _, name := range retired {
		cumulative = append(cumulative, ComponentTotal{Component: name, Units: toDecimal(totals[name])})
	}

	sheet, _ := s.ledger.BalanceSheet()

	return &Overview{
		TotalSupply:        supply,
		PoolBalance:        pool,
		PoolUtilizationPct: utilization,
		ConfiguredRateBps:  policy.TotalRateBps(),
		EffectiveRatePct:   effective,
		CumulativeTax:      cumulative,
		TriggerMode:        s.ledger.TriggerMode(),
		ReflectionEnabled:  s.ledger.ReflectionEnabled(),
		ReflectionRateZero: s.ledger.ReflectionRateZero(),
		KnownAccounts:      len(sheet),
	}
}

func toDecimal(units *uint256.Int) decimal.Decimal {
	return decimal.RequireFromString(units.Dec())
}
