// Package tracker follows the lifecycle of a submitted transaction from the
// moment a handle is issued until it is confirmed or fails.
package tracker

import (
	"sync"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultFailure is the reason reported when the transport gives none.
const DefaultFailure = "transaction failed"

// EventHandler defines a function that is called when events
// occur in the lifecycle of a tracked transaction.
type EventHandler func(v string, args ...any)

// =============================================================================

// Phase represents where a transaction is in its lifecycle.
type Phase int

// Set of lifecycle phases.
const (
	Idle Phase = iota
	Pending
	Confirming
	Confirmed
	Failed
)

// String implements the fmt.Stringer interface.
func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Confirming:
		return "confirming"
	case Confirmed:
		return "confirmed"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// IsFinal reports whether the phase is terminal.
func (p Phase) IsFinal() bool {
	return p == Confirmed || p == Failed
}

// MarshalText implements the encoding.TextMarshaler interface.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// =============================================================================

// PendingTransaction is the tracked transaction.
type PendingTransaction struct {
	Handle      common.Hash `json:"handle"`
	Phase       Phase       `json:"phase"`
	SubmittedAt time.Time   `json:"submitted_at"`
	BlockNumber uint64      `json:"block_number,omitempty"`
	Reason      string      `json:"reason,omitempty"`
}

// Config represents the configuration required to construct a tracker.
// OnConfirmed runs once when the tracked transaction is confirmed. OnFinal
// runs once for every transaction that reaches a final phase.
type Config struct {
	OnConfirmed func(handle common.Hash)
	OnFinal     func(tx PendingTransaction)
	EvHandler   EventHandler
}

// Tracker holds at most one tracked transaction and interprets receipt
// reports for it. It performs no network I/O.
type Tracker struct {
	mu          sync.Mutex
	tx          PendingTransaction
	onConfirmed func(handle common.Hash)
	onFinal     func(tx PendingTransaction)
	evHandler   EventHandler
	now         func() time.Time
}

// New constructs a tracker in the Idle phase.
func New(cfg Config) *Tracker {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Tracker{
		onConfirmed: cfg.OnConfirmed,
		onFinal:     cfg.OnFinal,
		evHandler:   ev,
		now:         time.Now,
	}
}

// Track starts tracking the handle in the Pending phase. Any previously
// tracked transaction is discarded, not queued.
func (t *Tracker) Track(handle common.Hash) PendingTransaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tx.Phase != Idle && !t.tx.Phase.IsFinal() {
		t.evHandler("tracker: Track: discarding tx[%s] in phase %s", t.tx.Handle.Hex(), t.tx.Phase)
	}

	t.tx = PendingTransaction{
		Handle:      handle,
		Phase:       Pending,
		SubmittedAt: t.now().UTC(),
	}

	t.evHandler("tracker: Track: tx[%s]: pending", handle.Hex())

	return t.tx
}

// Observe applies a receipt report for the handle and returns the resulting
// phase. The boolean is false when the report was ignored because the handle
// is not the tracked one or the tracked transaction is already final.
func (t *Tracker) Observe(handle common.Hash, rct ledger.Receipt) (Phase, bool) {
	t.mu.Lock()

	if t.tx.Phase == Idle || t.tx.Handle != handle || t.tx.Phase.IsFinal() {
		phase := t.tx.Phase
		t.mu.Unlock()
		return phase, false
	}

	prev := t.tx.Phase

	switch rct.Status {
	case ledger.ReceiptPending:
		t.tx.Phase = Confirming

	case ledger.ReceiptSuccess:
		t.tx.Phase = Confirmed
		t.tx.BlockNumber = rct.BlockNumber

	case ledger.ReceiptFailed:
		t.tx.Phase = Failed
		t.tx.BlockNumber = rct.BlockNumber
		t.tx.Reason = rct.Reason
		if t.tx.Reason == "" {
			t.tx.Reason = DefaultFailure
		}
	}

	phase := t.tx.Phase
	tx := t.tx
	t.mu.Unlock()

	if phase != prev {
		t.evHandler("tracker: Observe: tx[%s]: %s -> %s", handle.Hex(), prev, phase)
	}

	// The hooks run outside the lock so they can read tracker state.
	if phase.IsFinal() && t.onFinal != nil {
		t.onFinal(tx)
	}
	if phase == Confirmed && t.onConfirmed != nil {
		t.onConfirmed(handle)
	}

	return phase, true
}

// Fail moves the tracked transaction to Failed with the reason, if the handle
// is still the tracked one and not already final.
func (t *Tracker) Fail(handle common.Hash, reason string) bool {
	_, applied := t.Observe(handle, ledger.Receipt{Status: ledger.ReceiptFailed, Reason: reason})
	return applied
}

// Current returns a copy of the tracked transaction. The boolean is false
// when nothing is tracked.
func (t *Tracker) Current() (PendingTransaction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tx, t.tx.Phase != Idle
}

// Reset drops the tracked transaction and returns to Idle.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tx = PendingTransaction{}
}
