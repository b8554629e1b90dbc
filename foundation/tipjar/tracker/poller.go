package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ethereum/go-ethereum/common"
)

// Set of default poller settings.
const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 15 * time.Minute
)

// TimeoutReason is the failure reason for a watch that ran out of time.
const TimeoutReason = "timed out waiting for confirmation"

// ReceiptSource provides receipt reports for transaction handles.
type ReceiptSource interface {
	Receipt(ctx context.Context, handle common.Hash) (ledger.Receipt, error)
}

// PollerConfig represents the configuration required to construct a poller.
type PollerConfig struct {
	Tracker   *Tracker
	Source    ReceiptSource
	Interval  time.Duration
	Timeout   time.Duration
	EvHandler EventHandler
}

// Poller drives a tracker by polling the transport for the receipt of the
// tracked handle. At most one watch is live at a time.
type Poller struct {
	tracker   *Tracker
	source    ReceiptSource
	interval  time.Duration
	timeout   time.Duration
	evHandler EventHandler

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	shut   bool
}

// NewPoller constructs a poller for the tracker.
func NewPoller(cfg PollerConfig) *Poller {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Poller{
		tracker:   cfg.Tracker,
		source:    cfg.Source,
		interval:  interval,
		timeout:   timeout,
		evHandler: ev,
	}
}

// Tracker returns the tracker this poller drives.
func (p *Poller) Tracker() *Tracker {
	return p.tracker
}

// Watch starts tracking the handle and polls for its receipt in the
// background. The previous watch, if any, is abandoned.
func (p *Poller) Watch(handle common.Hash) PendingTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	tx := p.tracker.Track(handle)
	if p.shut {
		return tx
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		p.poll(ctx, handle)
	}()

	return tx
}

// Shutdown abandons the live watch and waits for it to stop.
func (p *Poller) Shutdown() {
	p.mu.Lock()
	p.shut = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// =============================================================================

// poll asks the source for the receipt until the tracked transaction is
// final, replaced, or the watch is cancelled.
func (p *Poller) poll(ctx context.Context, handle common.Hash) {
	p.evHandler("tracker: poll: tx[%s]: started", handle.Hex())
	defer p.evHandler("tracker: poll: tx[%s]: completed", handle.Hex())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if p.check(ctx, handle) {
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				p.tracker.Fail(handle, TimeoutReason)
			}
			return
		}
	}
}

// check performs one receipt query and reports whether polling is done.
func (p *Poller) check(ctx context.Context, handle common.Hash) bool {
	rct, err := p.source.Receipt(ctx, handle)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.evHandler("tracker: poll: tx[%s]: ERROR: %s", handle.Hex(), err)
		return false
	}

	phase, applied := p.tracker.Observe(handle, rct)
	if !applied {
		return true
	}

	return phase.IsFinal()
}
