package history_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/history"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger/memory"
	"github.com/ethereum/go-ethereum/common"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var (
	jarAddr   = common.HexToAddress("0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9")
	ownerAddr = common.HexToAddress("0xFef311483Cc040e1A89fb9bb469eeB8A70935EF8")
	userAddr  = common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
)

func records(m int) []ledger.TipRecord {
	out := make([]ledger.TipRecord, m)
	for i := 0; i < m; i++ {
		out[i] = ledger.TipRecord{
			From:      userAddr,
			Timestamp: uint64(1700000000 + i),
			Name:      fmt.Sprintf("tipper-%d", i),
			Amount:    big.NewInt(int64(i + 1)),
		}
	}
	return out
}

// =============================================================================

func Test_Latest(t *testing.T) {
	t.Log("Given the need to truncate the record sequence for display.")
	{
		for m := 0; m <= 5; m++ {
			for _, n := range []int{2, 3} {
				t.Logf("\tTest m%d-n%d:\tWhen the ledger holds %d records and the view shows %d.", m, n, m, n)
				{
					recs := records(m)
					list := history.Latest(recs, n)

					if len(list) != min(m, n) {
						t.Fatalf("\t%s\tTest m%d-n%d:\tShould hold %d entries, got %d.", failed, m, n, min(m, n), len(list))
					}
					t.Logf("\t%s\tTest m%d-n%d:\tShould hold min(M, N) entries.", success, m, n)

					for i, tr := range list {
						if tr.Name != recs[m-1-i].Name {
							t.Fatalf("\t%s\tTest m%d-n%d:\tShould be most recent first at %d: got %s.", failed, m, n, i, tr.Name)
						}
					}
					t.Logf("\t%s\tTest m%d-n%d:\tShould be most recent first.", success, m, n)
				}
			}
		}

		t.Logf("\tTest copy:\tWhen the returned record is modified.")
		{
			recs := records(1)
			list := history.Latest(recs, 1)
			list[0].Amount.SetInt64(99)

			if recs[0].Amount.Int64() != 1 {
				t.Fatalf("\t%s\tTest copy:\tShould not share amounts with the source.", failed)
			}
			t.Logf("\t%s\tTest copy:\tShould not share amounts with the source.", success)
		}
	}
}

func Test_Refresh(t *testing.T) {
	t.Log("Given the need to keep the display list in sync with the ledger.")
	{
		ctx := context.Background()

		t.Logf("\tTest 0:\tWhen refreshing twice with no new records.")
		{
			l := memory.New(jarAddr, ownerAddr, userAddr)
			for _, tr := range records(4) {
				l.Append(tr)
			}

			s := history.New(history.Config{Source: l, Limit: 3})
			defer s.Close()

			if !s.Refresh(ctx) {
				t.Fatalf("\t%s\tTest 0:\tShould apply the first refresh.", failed)
			}
			first := s.List()

			s.Refresh(ctx)
			second := s.List()

			if len(first) != 3 || len(second) != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould show three entries: %d %d.", failed, len(first), len(second))
			}
			for i := range first {
				if first[i].Name != second[i].Name || first[i].Amount.Cmp(second[i].Amount) != 0 {
					t.Fatalf("\t%s\tTest 0:\tShould produce an unchanged list at %d.", failed, i)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould produce an unchanged list.", success)

			if first[0].Name != "tipper-3" {
				t.Fatalf("\t%s\tTest 0:\tShould show the most recent record first: %s.", failed, first[0].Name)
			}
			t.Logf("\t%s\tTest 0:\tShould show the most recent record first.", success)

			if v := s.View(2); len(v) != 2 || v[1].Name != "tipper-2" {
				t.Fatalf("\t%s\tTest 0:\tShould serve the tips view from the same list.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould serve the tips view from the same list.", success)
		}

		t.Logf("\tTest 1:\tWhen the fetch fails.")
		{
			l := memory.New(jarAddr, ownerAddr, userAddr)
			for _, tr := range records(2) {
				l.Append(tr)
			}

			s := history.New(history.Config{Source: l, Limit: 3})
			defer s.Close()

			s.Refresh(ctx)

			l.FailReads(errors.New("rpc unavailable"))
			l.Append(records(3)[2])

			if s.Refresh(ctx) {
				t.Fatalf("\t%s\tTest 1:\tShould not apply a failed refresh.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not apply a failed refresh.", success)

			if len(s.List()) != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould keep the previous list.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould keep the previous list.", success)

			if st := s.Stats(); st.Failed != 1 || st.Applied != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould count the failure: %+v", failed, st)
			}
			t.Logf("\t%s\tTest 1:\tShould count the failure.", success)

			l.FailReads(nil)
			s.Refresh(ctx)

			if list := s.List(); len(list) != 3 || list[0].Name != "tipper-2" {
				t.Fatalf("\t%s\tTest 1:\tShould recover on the next refresh.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould recover on the next refresh.", success)
		}
	}
}

// =============================================================================

// gatedSource holds every fetch until the test releases it.
type gatedSource struct {
	started chan int

	mu    sync.Mutex
	n     int
	gates map[int]chan []ledger.TipRecord
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		started: make(chan int, 10),
		gates:   make(map[int]chan []ledger.TipRecord),
	}
}

func (g *gatedSource) AllTips(ctx context.Context) ([]ledger.TipRecord, error) {
	g.mu.Lock()
	g.n++
	id := g.n
	gate := make(chan []ledger.TipRecord, 1)
	g.gates[id] = gate
	g.mu.Unlock()

	g.started <- id

	select {
	case recs := <-gate:
		return recs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedSource) release(id int, recs []ledger.TipRecord) {
	g.mu.Lock()
	gate := g.gates[id]
	g.mu.Unlock()

	gate <- recs
}

func (g *gatedSource) waitStarted(t *testing.T) int {
	select {
	case id := <-g.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatalf("\t%s\tfetch never started", failed)
		return 0
	}
}

func Test_RefreshOrdering(t *testing.T) {
	t.Log("Given the need to show the latest-issued fetch under reordering.")
	{
		ctx := context.Background()

		t.Logf("\tTest 0:\tWhen the later fetch resolves before the earlier one.")
		{
			src := newGatedSource()
			s := history.New(history.Config{Source: src, Limit: 3})
			defer s.Close()

			results := make(chan bool, 2)

			go func() { results <- s.Refresh(ctx) }()
			first := src.waitStarted(t)

			go func() { results <- s.Refresh(ctx) }()
			second := src.waitStarted(t)

			src.release(second, records(3))
			if !<-results {
				t.Fatalf("\t%s\tTest 0:\tShould apply the later-issued fetch.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould apply the later-issued fetch.", success)

			src.release(first, records(1))
			if <-results {
				t.Fatalf("\t%s\tTest 0:\tShould discard the earlier-issued fetch.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould discard the earlier-issued fetch.", success)

			if list := s.List(); len(list) != 3 || list[0].Name != "tipper-2" {
				t.Fatalf("\t%s\tTest 0:\tShould reflect the later-issued snapshot: %d entries.", failed, len(list))
			}
			t.Logf("\t%s\tTest 0:\tShould reflect the later-issued snapshot.", success)

			if st := s.Stats(); st.Stale != 1 || st.Applied != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould count one stale result: %+v", failed, st)
			}
			t.Logf("\t%s\tTest 0:\tShould count one stale result.", success)
		}

		t.Logf("\tTest 1:\tWhen the fetches resolve in issue order.")
		{
			src := newGatedSource()
			s := history.New(history.Config{Source: src, Limit: 3})
			defer s.Close()

			results := make(chan bool, 2)

			go func() { results <- s.Refresh(ctx) }()
			first := src.waitStarted(t)

			go func() { results <- s.Refresh(ctx) }()
			second := src.waitStarted(t)

			src.release(first, records(1))
			<-results
			src.release(second, records(2))
			<-results

			if list := s.List(); len(list) != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould reflect the last snapshot: %d entries.", failed, len(list))
			}
			t.Logf("\t%s\tTest 1:\tShould reflect the last snapshot.", success)
		}

		t.Logf("\tTest 2:\tWhen a fetch resolves after teardown.")
		{
			src := newGatedSource()
			s := history.New(history.Config{Source: src, Limit: 3})

			results := make(chan bool, 1)
			go func() { results <- s.Refresh(ctx) }()
			id := src.waitStarted(t)

			closed := make(chan struct{})
			go func() {
				s.Close()
				close(closed)
			}()

			time.Sleep(20 * time.Millisecond)
			src.release(id, records(2))

			if <-results {
				t.Fatalf("\t%s\tTest 2:\tShould ignore the late result.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould ignore the late result.", success)

			<-closed
			if len(s.List()) != 0 {
				t.Fatalf("\t%s\tTest 2:\tShould keep the list empty.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould keep the list empty.", success)

			if s.Refresh(ctx) {
				t.Fatalf("\t%s\tTest 2:\tShould refuse refreshes after teardown.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould refuse refreshes after teardown.", success)
		}
	}
}

func Test_Run(t *testing.T) {
	t.Log("Given the need to refresh on every new block.")
	{
		t.Logf("\tTest 0:\tWhen a tip is mined.")
		{
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			l := memory.New(jarAddr, ownerAddr, userAddr)
			s := history.New(history.Config{Source: l, Limit: 2})
			defer s.Close()

			blocks, err := l.SubscribeBlocks(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould subscribe to blocks: %v", failed, err)
			}

			done := make(chan struct{})
			go func() {
				s.Run(ctx, blocks)
				close(done)
			}()

			if _, err := l.SubmitTip(ctx, "Ada", "hello", big.NewInt(100)); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould submit a tip: %v", failed, err)
			}
			l.MineBlock()

			var list []ledger.TipRecord
			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				if list = s.List(); len(list) == 1 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}

			if len(list) != 1 || list[0].Name != "Ada" || list[0].Message != "hello" {
				t.Fatalf("\t%s\tTest 0:\tShould show the mined tip: %+v", failed, list)
			}
			t.Logf("\t%s\tTest 0:\tShould show the mined tip.", success)

			cancel()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatalf("\t%s\tTest 0:\tShould stop when the context is cancelled.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould stop when the context is cancelled.", success)
		}
	}
}
