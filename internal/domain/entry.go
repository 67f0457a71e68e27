package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind classifies a journal record
type EntryKind string

const (
	EntryMovement         EntryKind = "MOVEMENT"
	EntryTaxApplied       EntryKind = "TAX_APPLIED"
	EntryConfigChanged    EntryKind = "CONFIG_CHANGED"
	EntryExclusionChanged EntryKind = "EXCLUSION_CHANGED"
	EntryTriggerFired     EntryKind = "TRIGGER_FIRED"
	EntryPayoutIssued     EntryKind = "PAYOUT_ISSUED"
	EntryReflectionDesync EntryKind = "REFLECTION_DESYNC"
)

// Entry is one observable journal record. Payload is one of the *Record
// types below and must marshal to JSON.
type Entry struct {
	ID      uuid.UUID `json:"id"`
	At      time.Time `json:"at"`
	Kind    EntryKind `json:"kind"`
	Payload any       `json:"payload"`
}

// MovementRecord describes one raw ledger movement. Zero-value movements are
// recorded too: a transfer of 0 settles and leaves exactly this artifact.
type MovementRecord struct {
	From   Address `json:"from"`
	To     Address `json:"to"`
	Amount string  `json:"amount"`
	Label  string  `json:"label,omitempty"` // component name, "net", "payout", "mint"
}

// ComponentCutRecord is one component line of a tax-applied record, in
// declared policy order
type ComponentCutRecord struct {
	Name   string          `json:"name"`
	Kind   DestinationKind `json:"kind"`
	Amount string          `json:"amount"`
}

// TaxAppliedRecord describes one taxed transfer settlement
type TaxAppliedRecord struct {
	From       Address              `json:"from"`
	To         Address              `json:"to"`
	Gross      string               `json:"gross"`
	Net        string               `json:"net"`
	Components []ComponentCutRecord `json:"components"`
}

// ConfigChangedRecord describes one accepted owner mutation
type ConfigChangedRecord struct {
	Setting string `json:"setting"`
	Detail  string `json:"detail,omitempty"`
}

// ExclusionChangedRecord describes one accepted registry toggle
type ExclusionChangedRecord struct {
	Account  Address `json:"account"`
	Registry string  `json:"registry"` // "TAX" or "REFLECTION"
	Excluded bool    `json:"excluded"`
}

// TriggerFiredRecord describes one trigger decision that fired.
// For REVERSE_DAY the From/To fields carry the transfer roles swapped.
type TriggerFiredRecord struct {
	EventID uuid.UUID   `json:"event_id"`
	Mode    TriggerMode `json:"mode"`
	From    Address     `json:"from"`
	To      Address     `json:"to"`
	Amount  string      `json:"amount"`
}

// PayoutIssuedRecord describes one lucky-drop pool payout
type PayoutIssuedRecord struct {
	EventID       uuid.UUID `json:"event_id"`
	Recipient     Address   `json:"recipient"`
	Amount        string    `json:"amount"`
	PoolRemaining string    `json:"pool_remaining"`
}

// ReflectionDesyncRecord flags an absorbed reflected-unit deficit. The
// transfer that hit it still settled; the deficit was folded into the global
// reflected total.
type ReflectionDesyncRecord struct {
	Account Address `json:"account"`
	Deficit string  `json:"deficit"`
}
