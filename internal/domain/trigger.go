package domain

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// TriggerMode selects the deterministic post-transfer effect
type TriggerMode string

const (
	TriggerOff        TriggerMode = "OFF"
	TriggerConfetti   TriggerMode = "CONFETTI"
	TriggerReverseDay TriggerMode = "REVERSE_DAY"
	TriggerLuckyDrop  TriggerMode = "LUCKY_DROP"
)

// Valid reports whether the mode is one of the known modes
func (m TriggerMode) Valid() bool {
	switch m {
	case TriggerOff, TriggerConfetti, TriggerReverseDay, TriggerLuckyDrop:
		return true
	}
	return false
}

// LuckyPayoutCapBps caps the lucky-drop payout rate
const LuckyPayoutCapBps = 1_000

// TriggerParams are the deterministic thresholds evaluated after every
// settled transfer
type TriggerParams struct {
	ConfettiModulo   uint64
	ReverseDayModulo uint64
	LuckyDropModulo  uint64
	LuckyPayoutBps   uint64
	LuckyMaxPayout   *uint256.Int
	LuckyNeedsWindow bool // LUCKY_DROP fires only inside an active scheduled window
}

// Validate ensures the parameters adhere to domain rules.
// Every modulo must exceed 1: a modulo of 1 fires on every transfer and a
// modulo of 0 is undefined.
func (p TriggerParams) Validate() error {
	if p.ConfettiModulo <= 1 {
		return fmt.Errorf("confetti modulo must be greater than 1: %w", ErrParameterRejected)
	}
	if p.ReverseDayModulo <= 1 {
		return fmt.Errorf("reverse-day modulo must be greater than 1: %w", ErrParameterRejected)
	}
	if p.LuckyDropModulo <= 1 {
		return fmt.Errorf("lucky-drop modulo must be greater than 1: %w", ErrParameterRejected)
	}
	if p.LuckyPayoutBps > LuckyPayoutCapBps {
		return fmt.Errorf("lucky payout rate %d bps over %d bps cap: %w",
			p.LuckyPayoutBps, LuckyPayoutCapBps, ErrParameterRejected)
	}
	if p.LuckyMaxPayout == nil || p.LuckyMaxPayout.IsZero() {
		return fmt.Errorf("lucky payout cap must be positive: %w", ErrParameterRejected)
	}
	return nil
}

// ScheduledWindow overrides the configured trigger mode while it is active
// and the evaluation time lies inside [Start, End]
type ScheduledWindow struct {
	Mode   TriggerMode
	Start  time.Time
	End    time.Time
	Active bool
}

// Covers reports whether the window overrides the configured mode at t
func (w ScheduledWindow) Covers(t time.Time) bool {
	return w.Active && !t.Before(w.Start) && !t.After(w.End)
}

// ValidateAt ensures the window adheres to domain rules relative to now
func (w ScheduledWindow) ValidateAt(now time.Time) error {
	if !w.Mode.Valid() {
		return fmt.Errorf("unknown trigger mode %q: %w", w.Mode, ErrParameterRejected)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("window end must be after start: %w", ErrInvalidWindow)
	}
	if w.End.Before(now) {
		return fmt.Errorf("window end is in the past: %w", ErrInvalidWindow)
	}
	return nil
}
