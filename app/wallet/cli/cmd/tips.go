package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/amount"
	"github.com/ardanlabs/tipjar/foundation/tipjar/history"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger/evm"
	"github.com/spf13/cobra"
)

var tipsLimit int

var tipsCmd = &cobra.Command{
	Use:   "tips",
	Short: "Print the most recent tips.",
	Run:   tipsRun,
}

func init() {
	rootCmd.AddCommand(tipsCmd)
	tipsCmd.Flags().IntVarP(&tipsLimit, "limit", "n", 3, "Number of tips to show.")
}

func tipsRun(cmd *cobra.Command, args []string) {
	settings := ledger.Settings{Address: ledgerAddress}
	if err := settings.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	client, err := evm.Dial(ctx, rpcURL)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	l, err := evm.New(ctx, evm.Config{Client: client, Address: settings.LedgerAddress()})
	if err != nil {
		log.Fatal(err)
	}

	syncer := history.New(history.Config{Source: l, Limit: tipsLimit})
	defer syncer.Close()

	if !syncer.Refresh(ctx) {
		log.Fatal("unable to read the tips")
	}

	for _, tr := range syncer.List() {
		ts := time.Unix(int64(tr.Timestamp), 0).UTC().Format(time.RFC3339)
		fmt.Printf("%s  %-20s %12s  %s  %s\n", ts, tr.Name, amount.Format(tr.Amount), tr.From.Hex(), tr.Message)
	}
}
