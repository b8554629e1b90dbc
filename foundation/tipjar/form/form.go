// Package form binds the tip form inputs, decides whether a tip can be
// submitted, and hands submitted transactions to the lifecycle tracker.
package form

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ardanlabs/tipjar/foundation/tipjar/amount"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/tracker"
	"github.com/ardanlabs/tipjar/foundation/validate"
	"github.com/ethereum/go-ethereum/common"
)

// EventHandler defines a function that is called when events
// occur in the processing of submissions.
type EventHandler func(v string, args ...any)

// Watcher takes ownership of a submitted transaction handle.
type Watcher interface {
	Watch(handle common.Hash) tracker.PendingTransaction
}

// BeneficiaryReader reads the account that receives the tips.
type BeneficiaryReader interface {
	Beneficiary(ctx context.Context) (common.Address, error)
}

// Config represents the configuration required to construct a controller.
// When Owner is set, an unknown beneficiary blocks submission until a read
// through Owner succeeds.
type Config struct {
	Submitter   ledger.Submitter
	Watcher     Watcher
	Settings    ledger.Settings
	Beneficiary common.Address
	Owner       BeneficiaryReader
	EvHandler   EventHandler
}

// State represents a snapshot of the form for rendering.
type State struct {
	Name      string         `json:"name"`
	Message   string         `json:"message"`
	Amount    string         `json:"amount"`
	Connected bool           `json:"connected"`
	Account   common.Address `json:"account"`
	CanSubmit bool           `json:"canSubmit"`
	Notice    string         `json:"notice,omitempty"`
	Error     string         `json:"error,omitempty"`
	Warning   string         `json:"warning,omitempty"`
}

// Controller manages the tip form. Submissions are serialized.
type Controller struct {
	submitter   ledger.Submitter
	watcher     Watcher
	settings    ledger.Settings
	owner       BeneficiaryReader
	evHandler   EventHandler
	submitMu    sync.Mutex
	mu          sync.Mutex
	beneficiary common.Address
	name        string
	message     string
	amount      string
	connected   bool
	account     common.Address
	notice      string
	lastErr     string
}

// New constructs a controller with empty fields and no wallet connected.
func New(cfg Config) *Controller {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Controller{
		submitter:   cfg.Submitter,
		watcher:     cfg.Watcher,
		settings:    cfg.Settings,
		owner:       cfg.Owner,
		beneficiary: cfg.Beneficiary,
		evHandler:   ev,
	}
}

// SetName sets the name field.
func (c *Controller) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.name = name
}

// SetMessage sets the message field.
func (c *Controller) SetMessage(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.message = message
}

// SetAmount sets the amount field as entered by the user.
func (c *Controller) SetAmount(amt string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.amount = amt
}

// SetBeneficiary replaces the known beneficiary of the ledger.
func (c *Controller) SetBeneficiary(beneficiary common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.beneficiary = beneficiary
}

// Beneficiary returns the known beneficiary, or the zero address when it
// has not been read yet.
func (c *Controller) Beneficiary() common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.beneficiary
}

// RefreshBeneficiary reads the beneficiary through the configured reader.
func (c *Controller) RefreshBeneficiary(ctx context.Context) error {
	if c.owner == nil || !c.settings.Configured() {
		return ledger.ErrNotConfigured
	}

	beneficiary, err := c.owner.Beneficiary(ctx)
	if err != nil {
		c.evHandler("form: beneficiary: ERROR: %s", err)
		return fmt.Errorf("reading beneficiary: %w", err)
	}

	c.SetBeneficiary(beneficiary)
	c.evHandler("form: beneficiary: %s", beneficiary.Hex())

	return nil
}

// Connect records the connected wallet account.
func (c *Controller) Connect(account common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = true
	c.account = account
}

// Disconnect forgets the connected wallet account.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	c.account = common.Address{}
}

// CanSubmit reports whether the current fields may be submitted.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.validate()
	return err == nil
}

// State returns a snapshot of the form.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.validate()

	return State{
		Name:      c.name,
		Message:   c.message,
		Amount:    c.amount,
		Connected: c.connected,
		Account:   c.account,
		CanSubmit: err == nil,
		Notice:    c.notice,
		Error:     c.lastErr,
		Warning:   c.settings.Warning(),
	}
}

// Submit validates the form and sends the tip. An unknown beneficiary is
// read first. On success the fields that were not edited in the meantime are
// cleared and the transaction handle is handed to the watcher. A
// ValidationError means no network call was made. A SubmissionError means
// the ledger rejected the call and the fields are preserved.
func (c *Controller) Submit(ctx context.Context) (tracker.PendingTransaction, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	if c.owner != nil && c.settings.Configured() && c.Beneficiary() == (common.Address{}) {
		c.RefreshBeneficiary(ctx)
	}

	c.mu.Lock()
	c.notice = ""
	c.lastErr = ""
	in, err := c.validate()
	if err != nil {
		c.lastErr = err.Error()
		c.mu.Unlock()
		c.evHandler("form: submit: rejected: %s", err)
		return tracker.PendingTransaction{}, err
	}
	c.mu.Unlock()

	c.evHandler("form: submit: name[%s] value[%s]", in.name, in.value)

	handle, err := c.submitter.SubmitTip(ctx, in.name, in.message, in.value)
	if err != nil {
		serr := NewSubmissionError(err)

		c.mu.Lock()
		c.lastErr = serr.Message
		c.mu.Unlock()

		c.evHandler("form: submit: ERROR: %s", err)
		return tracker.PendingTransaction{}, serr
	}

	c.mu.Lock()
	if c.name == in.rawName {
		c.name = ""
	}
	if c.message == in.rawMessage {
		c.message = ""
	}
	if c.amount == in.rawAmount {
		c.amount = ""
	}
	c.notice = fmt.Sprintf("Submitted. Tx: %s", handle.Hex())
	c.mu.Unlock()

	c.evHandler("form: submit: tx[%s]: submitted", handle.Hex())

	var tx tracker.PendingTransaction
	if c.watcher != nil {
		tx = c.watcher.Watch(handle)
	}

	return tx, nil
}

// =============================================================================

// submission represents the values sent to the ledger.
type submission struct {
	name    string
	message string
	value   *big.Int

	rawName    string
	rawMessage string
	rawAmount  string
}

// validate checks the fields. The caller must hold the lock.
func (c *Controller) validate() (submission, error) {
	if !c.connected || !c.settings.Configured() || c.submitter == nil {
		return submission{}, &ValidationError{Message: MsgInvalid}
	}

	switch {
	case c.beneficiary == (common.Address{}):
		if c.owner != nil {
			return submission{}, &ValidationError{Message: MsgNoBeneficiary}
		}

	case c.account == c.beneficiary:
		return submission{}, &ValidationError{Message: MsgSelfTip}
	}

	value, ok := amount.Parse(c.amount)
	if !ok {
		return submission{}, &ValidationError{Message: MsgInvalid}
	}

	in := submission{
		name:    strings.TrimSpace(c.name),
		message: strings.TrimSpace(c.message),
		value:   value,

		rawName:    c.name,
		rawMessage: c.message,
		rawAmount:  c.amount,
	}

	var fields validate.FieldErrors
	if err := validate.Var("name", in.name, fmt.Sprintf("required,max=%d", ledger.MaxNameLength)); err != nil {
		fields = append(fields, validate.GetFieldErrors(err)...)
	}
	if err := validate.Var("message", in.message, fmt.Sprintf("max=%d", ledger.MaxMessageLength)); err != nil {
		fields = append(fields, validate.GetFieldErrors(err)...)
	}
	if len(fields) > 0 {
		return submission{}, &ValidationError{Message: MsgInvalid, Fields: fields}
	}

	return in, nil
}
