// Package jar assembles the tip jar components around one ledger so the
// service and the wallet CLI share the same wiring.
package jar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/form"
	"github.com/ardanlabs/tipjar/foundation/tipjar/history"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/tracker"
	"github.com/ardanlabs/tipjar/foundation/tipjar/withdraw"
	"github.com/ethereum/go-ethereum/common"
)

// Set of display list sizes used by the views.
const (
	TipsView  = 2
	MemosView = 3
)

// EventHandler defines a function that is called when events
// occur in any of the components.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to construct a jar.
type Config struct {
	Settings     ledger.Settings
	Ledger       ledger.Ledger
	Transport    ledger.Transport
	Wallet       common.Address
	HistoryLimit int
	PollInterval time.Duration
	PollTimeout  time.Duration
	OnFinal      func(kind string, tx tracker.PendingTransaction)
	EvHandler    EventHandler
}

// Jar holds the wired components.
type Jar struct {
	Settings       ledger.Settings
	Ledger         ledger.Ledger
	Transport      ledger.Transport
	History        *history.Synchronizer
	TipPoller      *tracker.Poller
	WithdrawPoller *tracker.Poller
	Form           *form.Controller
	Withdraw       *withdraw.Controller

	evHandler EventHandler
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

// New constructs the components. When the settings are not configured the
// ledger is never called and every action reports ErrNotConfigured.
func New(ctx context.Context, cfg Config) (*Jar, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if err := cfg.Settings.Validate(); err != nil && !errors.Is(err, ledger.ErrNotConfigured) {
		return nil, fmt.Errorf("validating settings: %w", err)
	}

	configured := cfg.Settings.Configured()
	if configured && (cfg.Ledger == nil || cfg.Transport == nil) {
		return nil, fmt.Errorf("configured ledger %s needs a ledger and transport", cfg.Settings.LedgerAddress())
	}

	onFinal := func(kind string) func(tracker.PendingTransaction) {
		return func(tx tracker.PendingTransaction) {
			if cfg.OnFinal != nil {
				cfg.OnFinal(kind, tx)
			}
		}
	}

	syncer := history.New(history.Config{
		Source:    cfg.Ledger,
		Limit:     max(cfg.HistoryLimit, MemosView),
		EvHandler: history.EventHandler(ev),
	})

	j := Jar{
		Settings:  cfg.Settings,
		Ledger:    cfg.Ledger,
		Transport: cfg.Transport,
		History:   syncer,
		evHandler: ev,
	}

	j.TipPoller = tracker.NewPoller(tracker.PollerConfig{
		Tracker: tracker.New(tracker.Config{
			OnConfirmed: func(common.Hash) { syncer.Trigger() },
			OnFinal:     onFinal("tip"),
			EvHandler:   tracker.EventHandler(ev),
		}),
		Source:    receiptSource{cfg.Transport},
		Interval:  cfg.PollInterval,
		Timeout:   cfg.PollTimeout,
		EvHandler: tracker.EventHandler(ev),
	})

	j.WithdrawPoller = tracker.NewPoller(tracker.PollerConfig{
		Tracker: tracker.New(tracker.Config{
			OnFinal:   onFinal("withdraw"),
			EvHandler: tracker.EventHandler(ev),
		}),
		Source:    receiptSource{cfg.Transport},
		Interval:  cfg.PollInterval,
		Timeout:   cfg.PollTimeout,
		EvHandler: tracker.EventHandler(ev),
	})

	var submitter ledger.Submitter
	var owner form.BeneficiaryReader
	if configured {
		submitter = cfg.Ledger
		owner = cfg.Ledger
	}

	j.Form = form.New(form.Config{
		Submitter: submitter,
		Watcher:   j.TipPoller,
		Settings:  cfg.Settings,
		Owner:     owner,
		EvHandler: form.EventHandler(ev),
	})

	// A failed read leaves submission blocked until a later read succeeds.
	if configured {
		if err := j.Form.RefreshBeneficiary(ctx); err != nil {
			ev("jar: new: %s", err)
		}
	}

	j.Withdraw = withdraw.New(withdraw.Config{
		Ledger:    cfg.Ledger,
		Balancer:  cfg.Transport,
		Watcher:   j.WithdrawPoller,
		Settings:  cfg.Settings,
		EvHandler: withdraw.EventHandler(ev),
	})

	if cfg.Wallet != (common.Address{}) {
		j.Form.Connect(cfg.Wallet)
		j.Withdraw.Connect(cfg.Wallet)
	}

	return &j, nil
}

// Start subscribes to new blocks and keeps the display list in sync. It does
// nothing when the ledger is not configured.
func (j *Jar) Start(ctx context.Context) error {
	if !j.Settings.Configured() {
		j.evHandler("jar: start: %s", j.Settings.Warning())
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)

	blocks, err := j.Transport.SubscribeBlocks(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribing to blocks: %w", err)
	}

	j.cancel = cancel

	ticks := make(chan uint64, 16)

	j.wg.Add(2)
	go func() {
		defer j.wg.Done()
		j.History.Run(ctx, ticks)
	}()
	go func() {
		defer j.wg.Done()
		j.relayBlocks(ctx, blocks, ticks)
	}()

	return nil
}

// relayBlocks forwards block notifications to the synchronizer and retries
// the beneficiary read on every block while it is unknown.
func (j *Jar) relayBlocks(ctx context.Context, blocks <-chan uint64, ticks chan<- uint64) {
	defer close(ticks)

	for {
		select {
		case n, ok := <-blocks:
			if !ok {
				return
			}

			if j.Form.Beneficiary() == (common.Address{}) {
				j.Form.RefreshBeneficiary(ctx)
			}

			select {
			case ticks <- n:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Shutdown stops the synchronizer and any live receipt watch.
func (j *Jar) Shutdown() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()

	j.TipPoller.Shutdown()
	j.WithdrawPoller.Shutdown()
	j.History.Close()
}

// =============================================================================

// receiptSource adapts an optional transport to the poller. A missing
// transport never learns about any handle.
type receiptSource struct {
	transport ledger.Transport
}

func (rs receiptSource) Receipt(ctx context.Context, handle common.Hash) (ledger.Receipt, error) {
	if rs.transport == nil {
		return ledger.Receipt{}, ledger.ErrNotConfigured
	}
	return rs.transport.Receipt(ctx, handle)
}
