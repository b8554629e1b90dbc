// Package history keeps a display list of the most recent tips consistent
// with the ledger by refetching the full record sequence on every new block.
package history

import (
	"context"
	"sync"

	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
)

// DefaultLimit is the number of records kept when no limit is configured.
const DefaultLimit = 3

// EventHandler defines a function that is called when events
// occur in the processing of refreshes.
type EventHandler func(v string, args ...any)

// Source provides the full, authoritative record sequence in insertion order.
type Source interface {
	AllTips(ctx context.Context) ([]ledger.TipRecord, error)
}

// Config represents the configuration required to construct a synchronizer.
type Config struct {
	Source    Source
	Limit     int
	EvHandler EventHandler
}

// Stats represents the refresh counters of a synchronizer.
type Stats struct {
	Issued  uint64
	Applied uint64
	Stale   uint64
	Failed  uint64
}

// Synchronizer maintains the display list. Refreshes may run concurrently;
// only a result issued after the last applied one replaces the list.
type Synchronizer struct {
	source    Source
	limit     int
	evHandler EventHandler

	mu      sync.Mutex
	list    []ledger.TipRecord
	issued  uint64
	applied uint64
	closed  bool
	stats   Stats

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a synchronizer with an empty display list.
func New(cfg Config) *Synchronizer {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Synchronizer{
		source:    cfg.Source,
		limit:     limit,
		evHandler: ev,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Limit returns the maximum size of the display list.
func (s *Synchronizer) Limit() int {
	return s.limit
}

// Refresh fetches the record sequence and replaces the display list if no
// later-issued refresh has been applied already. It reports whether the list
// was replaced. Fetch failures leave the current list in place.
func (s *Synchronizer) Refresh(ctx context.Context) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.issued++
	s.stats.Issued++
	seq := s.issued
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	records, err := s.source.AllTips(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.stats.Failed++
		s.evHandler("history: refresh: seq[%d]: ERROR: %s", seq, err)
		return false
	}

	if s.closed || seq <= s.applied {
		s.stats.Stale++
		s.evHandler("history: refresh: seq[%d]: discarded, applied[%d]", seq, s.applied)
		return false
	}

	s.applied = seq
	s.list = Latest(records, s.limit)
	s.stats.Applied++
	s.evHandler("history: refresh: seq[%d]: applied: records[%d] shown[%d]", seq, len(records), len(s.list))

	return true
}

// Trigger starts a refresh in the background and returns immediately.
func (s *Synchronizer) Trigger() {
	go s.Refresh(s.ctx)
}

// Run refreshes once and then again on every block notification until the
// context is cancelled or the channel is closed. Refreshes for consecutive
// blocks are not serialized.
func (s *Synchronizer) Run(ctx context.Context, blocks <-chan uint64) {
	s.evHandler("history: run: started")
	defer s.evHandler("history: run: completed")

	s.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case n, ok := <-blocks:
			if !ok {
				return
			}
			s.evHandler("history: run: block[%d]", n)
			go s.Refresh(ctx)
		}
	}
}

// List returns a copy of the display list, most recent first.
func (s *Synchronizer) List() []ledger.TipRecord {
	return s.View(s.limit)
}

// View returns a copy of the first n entries of the display list.
func (s *Synchronizer) View(n int) []ledger.TipRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	n = min(n, len(s.list))
	if n <= 0 {
		return []ledger.TipRecord{}
	}

	out := make([]ledger.TipRecord, n)
	for i := 0; i < n; i++ {
		out[i] = s.list[i].Copy()
	}

	return out
}

// Stats returns a snapshot of the refresh counters.
func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// Close stops the synchronizer. Results that arrive after Close are
// ignored. Close waits for in-flight refreshes to return.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// =============================================================================

// Latest returns copies of the last n records in reverse order, so the most
// recently appended record comes first.
func Latest(records []ledger.TipRecord, n int) []ledger.TipRecord {
	n = min(n, len(records))
	if n <= 0 {
		return []ledger.TipRecord{}
	}

	out := make([]ledger.TipRecord, n)
	for i := 0; i < n; i++ {
		out[i] = records[len(records)-1-i].Copy()
	}

	return out
}
