package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/ardanlabs/tipjar/foundation/tipjar/amount"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw every held tip to the beneficiary.",
	Run:   withdrawRun,
}

func init() {
	rootCmd.AddCommand(withdrawCmd)
	withdrawCmd.Flags().DurationVarP(&waitFor, "wait", "w", waitFor, "How long to wait for confirmation.")
}

func withdrawRun(cmd *cobra.Command, args []string) {
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

	st, err := j.Withdraw.Status(ctx)
	if err != nil {
		log.Fatal(err)
	}
	if st.Balance != nil {
		fmt.Println("Balance:", amount.FormatFixed(st.Balance, 2))
	}

	tx, err := j.Withdraw.Withdraw(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Submitted. Tx:", tx.Handle.Hex())

	tx = waitFinal(j.WithdrawPoller.Tracker(), tx, waitFor)
	printFinal(tx)
}
