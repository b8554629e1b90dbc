// Package withdraw lets the beneficiary drain the balance held by the ledger.
package withdraw

import (
	"context"
	"math/big"
	"sync"

	"github.com/ardanlabs/tipjar/foundation/tipjar/form"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/tracker"
	"github.com/ethereum/go-ethereum/common"
)

// Set of user facing messages.
const (
	MsgNotConnected = "connect your wallet to continue"
	MsgNotOwner     = "you are not the contract owner"
	MsgEmpty        = "there is nothing to withdraw"
)

// EventHandler defines a function that is called when events
// occur in the processing of withdrawals.
type EventHandler func(v string, args ...any)

// Ledger is the part of the ledger surface the controller needs.
type Ledger interface {
	ledger.Withdrawer
	Beneficiary(ctx context.Context) (common.Address, error)
}

// Balancer reports account balances.
type Balancer interface {
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
}

// Config represents the configuration required to construct a controller.
type Config struct {
	Ledger    Ledger
	Balancer  Balancer
	Watcher   form.Watcher
	Settings  ledger.Settings
	EvHandler EventHandler
}

// Status represents what the withdraw view shows.
type Status struct {
	Contract      common.Address `json:"contract"`
	Balance       *big.Int       `json:"balance"`
	Beneficiary   common.Address `json:"beneficiary"`
	Connected     bool           `json:"connected"`
	Account       common.Address `json:"account"`
	IsBeneficiary bool           `json:"isBeneficiary"`
	CanWithdraw   bool           `json:"canWithdraw"`
	Warning       string         `json:"warning,omitempty"`
}

// Controller manages withdrawals for the connected wallet.
type Controller struct {
	ledger    Ledger
	balancer  Balancer
	watcher   form.Watcher
	settings  ledger.Settings
	evHandler EventHandler

	mu        sync.Mutex
	connected bool
	account   common.Address
}

// New constructs a controller with no wallet connected.
func New(cfg Config) *Controller {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	return &Controller{
		ledger:    cfg.Ledger,
		balancer:  cfg.Balancer,
		watcher:   cfg.Watcher,
		settings:  cfg.Settings,
		evHandler: ev,
	}
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

// Status reads the held balance and beneficiary. Read failures leave the
// corresponding values empty and disable the withdrawal.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	c.mu.Lock()
	connected, account := c.connected, c.account
	c.mu.Unlock()

	st := Status{
		Connected: connected,
		Account:   account,
		Warning:   c.settings.Warning(),
	}

	if !c.settings.Configured() {
		return st, ledger.ErrNotConfigured
	}

	st.Contract = c.settings.LedgerAddress()

	bal, err := c.balancer.Balance(ctx, st.Contract)
	if err != nil {
		c.evHandler("withdraw: status: balance: ERROR: %s", err)
	} else {
		st.Balance = bal
	}

	owner, err := c.ledger.Beneficiary(ctx)
	if err != nil {
		c.evHandler("withdraw: status: beneficiary: ERROR: %s", err)
	} else {
		st.Beneficiary = owner
		st.IsBeneficiary = connected && owner == account
	}

	st.CanWithdraw = st.IsBeneficiary && st.Balance != nil && st.Balance.Sign() > 0

	return st, nil
}

// Withdraw submits the drain transaction and hands its handle to the
// watcher. It follows the error taxonomy of the tip form.
func (c *Controller) Withdraw(ctx context.Context) (tracker.PendingTransaction, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return tracker.PendingTransaction{}, err
	}

	switch {
	case !st.Connected:
		return tracker.PendingTransaction{}, &form.ValidationError{Message: MsgNotConnected}
	case !st.IsBeneficiary:
		return tracker.PendingTransaction{}, &form.ValidationError{Message: MsgNotOwner}
	case !st.CanWithdraw:
		return tracker.PendingTransaction{}, &form.ValidationError{Message: MsgEmpty}
	}

	c.evHandler("withdraw: submit: balance[%s]", st.Balance)

	handle, err := c.ledger.Withdraw(ctx)
	if err != nil {
		c.evHandler("withdraw: submit: ERROR: %s", err)
		return tracker.PendingTransaction{}, form.NewSubmissionError(err)
	}

	c.evHandler("withdraw: submit: tx[%s]: submitted", handle.Hex())

	var tx tracker.PendingTransaction
	if c.watcher != nil {
		tx = c.watcher.Watch(handle)
	}

	return tx, nil
}
