package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/ardanlabs/tipjar/foundation/tipjar/amount"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger/evm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	client, err := evm.Dial(ctx, rpcURL)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	account := crypto.PubkeyToAddress(privateKey.PublicKey)
	fmt.Println("For Account:", account.Hex())

	bal, err := client.BalanceAt(ctx, account, nil)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(amount.Format(bal))
}
