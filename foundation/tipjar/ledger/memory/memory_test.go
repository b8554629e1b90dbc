package memory_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger/memory"
	"github.com/ethereum/go-ethereum/common"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

var (
	jarAddr   = common.HexToAddress("0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9")
	ownerAddr = common.HexToAddress("0xFef311483Cc040e1A89fb9bb469eeB8A70935EF8")
	userAddr  = common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
)

// =============================================================================

func Test_Mining(t *testing.T) {
	t.Log("Given the need to apply pending transactions when a block is mined.")
	{
		ctx := context.Background()

		t.Logf("\tTest 0:\tWhen tips and a withdrawal are submitted.")
		{
			l := memory.New(jarAddr, ownerAddr, userAddr)

			h1, _ := l.SubmitTip(ctx, "Ada", "first", big.NewInt(10))
			h2, _ := l.SubmitTip(ctx, "Bob", "second", big.NewInt(20))

			if h1 == h2 {
				t.Fatalf("\t%s\tTest 0:\tShould issue distinct handles.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould issue distinct handles.", success)

			if rct, _ := l.Receipt(ctx, h1); rct.Status != ledger.ReceiptPending {
				t.Fatalf("\t%s\tTest 0:\tShould report the handle as pending: %s", failed, rct.Status)
			}
			t.Logf("\t%s\tTest 0:\tShould report the handle as pending.", success)

			if tips, _ := l.AllTips(ctx); len(tips) != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould not show unmined tips.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not show unmined tips.", success)

			n := l.MineBlock()

			rct, _ := l.Receipt(ctx, h2)
			if rct.Status != ledger.ReceiptSuccess || rct.BlockNumber != n {
				t.Fatalf("\t%s\tTest 0:\tShould report success in block %d: %+v", failed, n, rct)
			}
			t.Logf("\t%s\tTest 0:\tShould report success in the mined block.", success)

			tips, _ := l.AllTips(ctx)
			if len(tips) != 2 || tips[0].Name != "Ada" || tips[1].Name != "Bob" || tips[0].From != userAddr {
				t.Fatalf("\t%s\tTest 0:\tShould keep tips in insertion order.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould keep tips in insertion order.", success)

			if bal, _ := l.Balance(ctx, jarAddr); bal.Int64() != 30 {
				t.Fatalf("\t%s\tTest 0:\tShould hold the tipped value: %s", failed, bal)
			}
			t.Logf("\t%s\tTest 0:\tShould hold the tipped value.", success)

			hw, _ := l.Withdraw(ctx)
			l.MineBlock()

			rct, _ = l.Receipt(ctx, hw)
			if rct.Status != ledger.ReceiptFailed || rct.Reason == "" {
				t.Fatalf("\t%s\tTest 0:\tShould revert a withdrawal by a stranger: %+v", failed, rct)
			}
			t.Logf("\t%s\tTest 0:\tShould revert a withdrawal by a stranger.", success)

			l.SetSender(ownerAddr)
			hw, _ = l.Withdraw(ctx)
			l.MineBlock()

			rct, _ = l.Receipt(ctx, hw)
			bal, _ := l.Balance(ctx, ownerAddr)
			if rct.Status != ledger.ReceiptSuccess || bal.Int64() != 30 {
				t.Fatalf("\t%s\tTest 0:\tShould pay the beneficiary: %+v %s", failed, rct, bal)
			}
			t.Logf("\t%s\tTest 0:\tShould pay the beneficiary.", success)

			if rct, _ := l.Receipt(ctx, common.HexToHash("0x01")); rct.Status != ledger.ReceiptUnknown {
				t.Fatalf("\t%s\tTest 0:\tShould not know a random handle.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould not know a random handle.", success)
		}
	}
}

func Test_Subscribe(t *testing.T) {
	t.Log("Given the need to be notified of new blocks.")
	{
		t.Logf("\tTest 0:\tWhen blocks are mined while subscribed.")
		{
			ctx, cancel := context.WithCancel(context.Background())

			l := memory.New(jarAddr, ownerAddr, userAddr)
			ch, err := l.SubscribeBlocks(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould subscribe: %v", failed, err)
			}

			n := l.MineBlock()

			select {
			case got := <-ch:
				if got != n {
					t.Fatalf("\t%s\tTest 0:\tShould receive block %d, got %d.", failed, n, got)
				}
			case <-time.After(time.Second):
				t.Fatalf("\t%s\tTest 0:\tShould receive the block.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould receive the block.", success)

			cancel()

			select {
			case _, ok := <-ch:
				if ok {
					t.Fatalf("\t%s\tTest 0:\tShould close the channel on cancel.", failed)
				}
			case <-time.After(time.Second):
				t.Fatalf("\t%s\tTest 0:\tShould close the channel on cancel.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould close the channel on cancel.", success)
		}
	}
}
