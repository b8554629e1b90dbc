package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ardanlabs/tipjar/foundation/tipjar/tracker"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	tipName    string
	tipMessage string
	tipAmount  string
	waitFor    time.Duration
)

var tipCmd = &cobra.Command{
	Use:   "tip",
	Short: "Send a tip and wait for it to be confirmed.",
	Run:   tipRun,
}

func init() {
	rootCmd.AddCommand(tipCmd)
	tipCmd.Flags().StringVarP(&tipName, "name", "n", "", "Your name.")
	tipCmd.Flags().StringVarP(&tipMessage, "message", "m", "", "Message to leave with the tip.")
	tipCmd.Flags().StringVarP(&tipAmount, "amount", "x", "", "Amount to tip, up to 18 decimals.")
	tipCmd.Flags().DurationVarP(&waitFor, "wait", "w", 2*time.Minute, "How long to wait for confirmation.")
}

func tipRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	j, err := openJar(ctx, privateKey)
	if err != nil {
		log.Fatal(err)
	}
	defer j.Shutdown()

	j.Form.SetName(tipName)
	j.Form.SetMessage(tipMessage)
	j.Form.SetAmount(tipAmount)

	tx, err := j.Form.Submit(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(j.Form.State().Notice)

	tx = waitFinal(j.TipPoller.Tracker(), tx, waitFor)
	printFinal(tx)
}

// waitFinal reports the phase of the transaction until it is final or the
// wait runs out.
func waitFinal(trk *tracker.Tracker, tx tracker.PendingTransaction, wait time.Duration) tracker.PendingTransaction {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.After(wait)
	last := tx.Phase

	for {
		select {
		case <-ticker.C:
			cur, _ := trk.Current()
			if cur.Phase != last {
				fmt.Println("Phase:", cur.Phase)
				last = cur.Phase
			}
			if cur.Phase.IsFinal() {
				return cur
			}

		case <-deadline:
			cur, _ := trk.Current()
			return cur
		}
	}
}

func printFinal(tx tracker.PendingTransaction) {
	switch tx.Phase {
	case tracker.Confirmed:
		fmt.Printf("Confirmed! Block %d\n", tx.BlockNumber)
	case tracker.Failed:
		log.Fatalf("Failed: %s", tx.Reason)
	default:
		fmt.Printf("Still %s, tx %s\n", tx.Phase, tx.Handle.Hex())
	}
}
