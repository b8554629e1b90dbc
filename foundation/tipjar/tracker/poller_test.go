package tracker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger/memory"
	"github.com/ardanlabs/tipjar/foundation/tipjar/tracker"
	"github.com/ethereum/go-ethereum/common"
)

var (
	jarAddr   = common.HexToAddress("0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9")
	ownerAddr = common.HexToAddress("0xFef311483Cc040e1A89fb9bb469eeB8A70935EF8")
	userAddr  = common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
)

// waitPhase polls the tracker until it reaches the phase or the deadline.
func waitPhase(trk *tracker.Tracker, phase tracker.Phase) (tracker.PendingTransaction, bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tx, _ := trk.Current(); tx.Phase == phase {
			return tx, true
		}
		time.Sleep(5 * time.Millisecond)
	}
	tx, _ := trk.Current()
	return tx, false
}

// unknownSource never learns about any handle.
type unknownSource struct {
	calls atomic.Int64
	err   error
}

func (s *unknownSource) Receipt(ctx context.Context, handle common.Hash) (ledger.Receipt, error) {
	s.calls.Add(1)
	return ledger.Receipt{Status: ledger.ReceiptUnknown}, s.err
}

// =============================================================================

func Test_PollerConfirms(t *testing.T) {
	t.Log("Given the need to poll the transport for a receipt.")
	{
		t.Logf("\tTest 0:\tWhen the transaction is mined successfully.")
		{
			ctx := context.Background()
			l := memory.New(jarAddr, ownerAddr, userAddr)

			var refreshed atomic.Int64
			trk := tracker.New(tracker.Config{
				OnConfirmed: func(common.Hash) { refreshed.Add(1) },
			})
			p := tracker.NewPoller(tracker.PollerConfig{
				Tracker:  trk,
				Source:   l,
				Interval: 5 * time.Millisecond,
			})
			defer p.Shutdown()

			handle, err := l.SubmitTip(ctx, "Ada", "", wei(1))
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to submit a tip: %v", failed, err)
			}
			p.Watch(handle)

			if _, ok := waitPhase(trk, tracker.Confirming); !ok {
				t.Fatalf("\t%s\tTest 0:\tShould see the transaction confirming.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould see the transaction confirming.", success)

			n := l.MineBlock()

			tx, ok := waitPhase(trk, tracker.Confirmed)
			if !ok {
				t.Fatalf("\t%s\tTest 0:\tShould see the transaction confirmed: %+v", failed, tx)
			}
			t.Logf("\t%s\tTest 0:\tShould see the transaction confirmed.", success)

			if tx.BlockNumber != n {
				t.Fatalf("\t%s\tTest 0:\tShould record block %d, got %d.", failed, n, tx.BlockNumber)
			}
			t.Logf("\t%s\tTest 0:\tShould record the block.", success)

			if refreshed.Load() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould prompt exactly one refresh, got %d.", failed, refreshed.Load())
			}
			t.Logf("\t%s\tTest 0:\tShould prompt exactly one refresh.", success)
		}

		t.Logf("\tTest 1:\tWhen the transaction reverts.")
		{
			ctx := context.Background()
			l := memory.New(jarAddr, ownerAddr, userAddr)

			trk := tracker.New(tracker.Config{})
			p := tracker.NewPoller(tracker.PollerConfig{
				Tracker:  trk,
				Source:   l,
				Interval: 5 * time.Millisecond,
			})
			defer p.Shutdown()

			handle, _ := l.SubmitTip(ctx, "Ada", "", wei(1))
			l.Revert(handle, "out of gas")
			p.Watch(handle)
			l.MineBlock()

			tx, ok := waitPhase(trk, tracker.Failed)
			if !ok || tx.Reason != "out of gas" {
				t.Fatalf("\t%s\tTest 1:\tShould surface the failure reason: %+v", failed, tx)
			}
			t.Logf("\t%s\tTest 1:\tShould surface the failure reason.", success)
		}
	}
}

func Test_PollerTimeout(t *testing.T) {
	t.Log("Given the need to bound the wait for a receipt.")
	{
		t.Logf("\tTest 0:\tWhen no receipt ever shows up.")
		{
			src := unknownSource{err: errors.New("rpc down")}
			trk := tracker.New(tracker.Config{})
			p := tracker.NewPoller(tracker.PollerConfig{
				Tracker:  trk,
				Source:   &src,
				Interval: 5 * time.Millisecond,
				Timeout:  50 * time.Millisecond,
			})
			defer p.Shutdown()

			p.Watch(handleA)

			tx, ok := waitPhase(trk, tracker.Failed)
			if !ok || tx.Reason != tracker.TimeoutReason {
				t.Fatalf("\t%s\tTest 0:\tShould fail the watch on timeout: %+v", failed, tx)
			}
			t.Logf("\t%s\tTest 0:\tShould fail the watch on timeout.", success)

			if src.calls.Load() < 2 {
				t.Fatalf("\t%s\tTest 0:\tShould keep polling through errors.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould keep polling through errors.", success)
		}
	}
}

func Test_PollerReplace(t *testing.T) {
	t.Log("Given the need to keep at most one live watch.")
	{
		t.Logf("\tTest 0:\tWhen a second handle is watched.")
		{
			src := unknownSource{}
			trk := tracker.New(tracker.Config{})
			p := tracker.NewPoller(tracker.PollerConfig{
				Tracker:  trk,
				Source:   &src,
				Interval: 5 * time.Millisecond,
				Timeout:  30 * time.Millisecond,
			})

			p.Watch(handleA)
			p.Watch(handleB)

			tx, ok := waitPhase(trk, tracker.Failed)
			if !ok || tx.Handle != handleB {
				t.Fatalf("\t%s\tTest 0:\tShould only track the latest handle: %+v", failed, tx)
			}
			t.Logf("\t%s\tTest 0:\tShould only track the latest handle.", success)

			p.Shutdown()

			calls := src.calls.Load()
			time.Sleep(30 * time.Millisecond)
			if src.calls.Load() != calls {
				t.Fatalf("\t%s\tTest 0:\tShould stop polling after shutdown.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould stop polling after shutdown.", success)
		}
	}
}
