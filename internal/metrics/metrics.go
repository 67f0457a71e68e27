package metrics

import (
	"math/big"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns the ledger's Prometheus collectors. A nil *Recorder is valid
// and records nothing, so callers never branch on whether metrics are on.
type Recorder struct {
	transfers    *prometheus.CounterVec
	taxUnits     *prometheus.CounterVec
	triggerFired *prometheus.CounterVec
	payoutUnits  prometheus.Counter

	poolBalance       prometheus.Gauge
	rateZero          prometheus.Gauge
	conservationDrift prometheus.Gauge
}

// New builds the collectors and registers them on reg
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refract_transfers_total",
			Help: "Settled transfers, partitioned by whether the tax split applied.",
		}, []string{"taxed"}),
		taxUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refract_tax_units_total",
			Help: "Units collected per tax component.",
		}, []string{"component"}),
		triggerFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refract_trigger_fired_total",
			Help: "Trigger outcomes by mode.",
		}, []string{"mode"}),
		payoutUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refract_payout_units_total",
			Help: "Units paid out of the pool by lucky drops.",
		}),
		poolBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "refract_pool_balance_units",
			Help: "Observable pool account balance after the last settlement.",
		}),
		rateZero: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "refract_reflection_rate_zero",
			Help: "1 while the reflection rate reads zero (nothing circulating).",
		}),
		conservationDrift: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "refract_conservation_drift_units",
			Help: "Absolute gap between the balance-sheet sum and the total supply at the last audit.",
		}),
	}
	reg.MustRegister(
		r.transfers, r.taxUnits, r.triggerFired, r.payoutUnits,
		r.poolBalance, r.rateZero, r.conservationDrift,
	)
	return r
}

// ObserveTransfer counts one settled transfer
func (r *Recorder) ObserveTransfer(taxed bool) {
	if r == nil {
		return
	}
	r.transfers.WithLabelValues(strconv.FormatBool(taxed)).Inc()
}

// AddTaxUnits accumulates one component cut
func (r *Recorder) AddTaxUnits(component string, units *uint256.Int) {
	if r == nil {
		return
	}
	r.taxUnits.WithLabelValues(component).Add(unitsValue(units))
}

// ObserveTrigger counts one fired trigger outcome
func (r *Recorder) ObserveTrigger(mode string) {
	if r == nil {
		return
	}
	r.triggerFired.WithLabelValues(mode).Inc()
}

// AddPayoutUnits accumulates one lucky-drop payout
func (r *Recorder) AddPayoutUnits(units *uint256.Int) {
	if r == nil {
		return
	}
	r.payoutUnits.Add(unitsValue(units))
}

// SetPoolBalance tracks the pool balance gauge
func (r *Recorder) SetPoolBalance(units *uint256.Int) {
	if r == nil {
		return
	}
	r.poolBalance.Set(unitsValue(units))
}

// SetRateZero flags a zero reflection rate
func (r *Recorder) SetRateZero(zero bool) {
	if r == nil {
		return
	}
	if zero {
		r.rateZero.Set(1)
	} else {
		r.rateZero.Set(0)
	}
}

// SetConservationDrift tracks the audit drift gauge
func (r *Recorder) SetConservationDrift(units *uint256.Int) {
	if r == nil {
		return
	}
	r.conservationDrift.Set(unitsValue(units))
}

// unitsValue converts a unit count for a float-valued collector. Counts near
// 2^256 lose precision, which is fine for monitoring.
func unitsValue(units *uint256.Int) float64 {
	if units.IsUint64() {
		return float64(units.Uint64())
	}
	f, _ := new(big.Float).SetInt(units.ToBig()).Float64()
	return f
}
