package trigger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/refractlabs/refract-core/internal/domain"
)

// eventNamespace seeds deterministic event ids. Two evaluations that agree on
// mode, recipient, amount, and payout always produce the same id.
var eventNamespace = uuid.MustParse("7c9e4a2b-31d5-4f8e-9c06-5b1a82e4d7f3")

// Outcome is one fired trigger decision. For REVERSE_DAY the From/To fields
// carry the transfer roles swapped; no balances move for it. Payout is set
// only when a LUCKY_DROP pays out of the pool.
type Outcome struct {
	Mode    domain.TriggerMode
	EventID uuid.UUID
	From    domain.Address
	To      domain.Address
	Amount  *uint256.Int
	Payout  *uint256.Int
}

// Engine evaluates the post-transfer trigger. Everything it decides is a
// pure function of the configured state, the evaluation time, and the
// settled transfer: no randomness, no hidden clock.
type Engine struct {
	mode      domain.TriggerMode
	params    domain.TriggerParams
	window    domain.ScheduledWindow
	scheduled bool
}

// New creates an Engine in mode OFF. The params must already satisfy
// domain validation.
func New(params domain.TriggerParams) *Engine {
	return &Engine{mode: domain.TriggerOff, params: params}
}

// Mode returns the configured mode, ignoring any scheduled window
func (e *Engine) Mode() domain.TriggerMode {
	return e.mode
}

// SetMode replaces the configured mode
func (e *Engine) SetMode(mode domain.TriggerMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown trigger mode %q: %w", mode, domain.ErrParameterRejected)
	}
	e.mode = mode
	return nil
}

// Params returns the current thresholds
func (e *Engine) Params() domain.TriggerParams {
	return e.params
}

// SetParams replaces the thresholds after validating them
func (e *Engine) SetParams(params domain.TriggerParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	e.params = params
	return nil
}

// Schedule installs the override window, replacing any previous one
func (e *Engine) Schedule(mode domain.TriggerMode, start, end, now time.Time) error {
	w := domain.ScheduledWindow{Mode: mode, Start: start, End: end, Active: true}
	if err := w.ValidateAt(now); err != nil {
		return err
	}
	e.window = w
	e.scheduled = true
	return nil
}

// ClearWindow removes the override window
func (e *Engine) ClearWindow() {
	e.window = domain.ScheduledWindow{}
	e.scheduled = false
}

// Window returns the override window and whether one is installed
func (e *Engine) Window() (domain.ScheduledWindow, bool) {
	return e.window, e.scheduled
}

// EffectiveMode resolves the mode at t: the window's mode while the window
// covers t, the configured mode otherwise
func (e *Engine) EffectiveMode(t time.Time) domain.TriggerMode {
	if e.scheduled && e.window.Covers(t) {
		return e.window.Mode
	}
	return e.mode
}

// Evaluate runs the effective mode against one settled transfer and returns
// the outcome, or nil when nothing fires. A transfer trips at most one
// outcome and at most one payout. poolBalance is the pool's observable
// balance after the transfer settled; the returned payout never exceeds it.
func (e *Engine) Evaluate(now time.Time, from, to domain.Address, amount, poolBalance *uint256.Int) *Outcome {
	switch e.EffectiveMode(now) {
	case domain.TriggerConfetti:
		if !hits(amount, e.params.ConfettiModulo) {
			return nil
		}
		return &Outcome{
			Mode:    domain.TriggerConfetti,
			EventID: eventID(domain.TriggerConfetti, to, amount, nil),
			From:    from,
			To:      to,
			Amount:  amount.Clone(),
		}

	case domain.TriggerReverseDay:
		if !hits(amount, e.params.ReverseDayModulo) {
			return nil
		}
		// Roles swap in the notification only. The event id sticks to the
		// actual recipient so it matches across modes.
		return &Outcome{
			Mode:    domain.TriggerReverseDay,
			EventID: eventID(domain.TriggerReverseDay, to, amount, nil),
			From:    to,
			To:      from,
			Amount:  amount.Clone(),
		}

	case domain.TriggerLuckyDrop:
		if e.params.LuckyNeedsWindow && !(e.scheduled && e.window.Covers(now)) {
			return nil
		}
		if !hits(amount, e.params.LuckyDropModulo) {
			return nil
		}
		payout := e.luckyPayout(amount, poolBalance)
		if payout.IsZero() {
			return nil
		}
		return &Outcome{
			Mode:    domain.TriggerLuckyDrop,
			EventID: eventID(domain.TriggerLuckyDrop, to, amount, payout),
			From:    from,
			To:      to,
			Amount:  amount.Clone(),
			Payout:  payout,
		}
	}
	return nil
}

// luckyPayout computes min(floor(amount · payoutBps / 10000), maxPayout,
// poolBalance)
func (e *Engine) luckyPayout(amount, poolBalance *uint256.Int) *uint256.Int {
	payout, overflow := new(uint256.Int).MulDivOverflow(
		amount, uint256.NewInt(e.params.LuckyPayoutBps), uint256.NewInt(domain.BpsDenominator))
	if overflow || payout.Gt(e.params.LuckyMaxPayout) {
		payout = e.params.LuckyMaxPayout.Clone()
	}
	if payout.Gt(poolBalance) {
		payout = poolBalance.Clone()
	}
	return payout
}

func hits(amount *uint256.Int, modulo uint64) bool {
	return new(uint256.Int).Mod(amount, uint256.NewInt(modulo)).IsZero()
}

func eventID(mode domain.TriggerMode, recipient domain.Address, amount, payout *uint256.Int) uuid.UUID {
	seed := make([]byte, 0, len(mode)+20+64)
	seed = append(seed, string(mode)...)
	seed = append(seed, recipient[:]...)
	a := amount.Bytes32()
	seed = append(seed, a[:]...)
	if payout != nil {
		p := payout.Bytes32()
		seed = append(seed, p[:]...)
	}
	return uuid.NewSHA1(eventNamespace, seed)
}
