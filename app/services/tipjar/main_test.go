package main

import (
	"context"
	"testing"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func Test_OpenLedger(t *testing.T) {
	t.Log("Given the need to open the configured ledger backend.")
	{
		log := zap.NewNop().Sugar()
		jarAddr := common.HexToAddress("0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9")
		configured := ledger.Settings{Address: jarAddr.Hex()}

		pk, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("\t%s\tShould generate a key: %v", failed, err)
		}
		wallet := crypto.PubkeyToAddress(pk.PublicKey)

		memoryCfg := ledgerConfig{
			Backend:   "memory",
			Owner:     "0xFef311483Cc040e1A89fb9bb469eeB8A70935EF8",
			MineEvery: time.Hour,
		}

		t.Logf("\tTest 0:\tWhen the memory backend is selected.")
		{
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			l, transport, got, err := openLedger(ctx, log, memoryCfg, configured, pk, nil)
			if err != nil || l == nil || transport == nil {
				t.Fatalf("\t%s\tTest 0:\tShould open the ledger: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould open the ledger.", success)

			if got != wallet {
				t.Fatalf("\t%s\tTest 0:\tShould connect the wallet, got %s.", failed, got.Hex())
			}
			t.Logf("\t%s\tTest 0:\tShould connect the wallet.", success)

			owner, err := l.Beneficiary(ctx)
			if err != nil || owner != common.HexToAddress(memoryCfg.Owner) {
				t.Fatalf("\t%s\tTest 0:\tShould use the configured owner: %s %v", failed, owner.Hex(), err)
			}
			t.Logf("\t%s\tTest 0:\tShould use the configured owner.", success)
		}

		t.Logf("\tTest 1:\tWhen the ledger address is unset.")
		{
			l, transport, _, err := openLedger(context.Background(), log, memoryCfg, ledger.Settings{}, pk, nil)
			if err != nil || l != nil || transport != nil {
				t.Fatalf("\t%s\tTest 1:\tShould open nothing: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould open nothing.", success)
		}

		t.Logf("\tTest 2:\tWhen the backend or owner is invalid.")
		{
			bad := []ledgerConfig{
				{Backend: "sqlite"},
				{Backend: "memory", Owner: "kennedy"},
			}
			for _, lc := range bad {
				if _, _, _, err := openLedger(context.Background(), log, lc, configured, nil, nil); err == nil {
					t.Fatalf("\t%s\tTest 2:\tShould reject %+v.", failed, lc)
				}
			}
			t.Logf("\t%s\tTest 2:\tShould reject the configuration.", success)
		}
	}
}
