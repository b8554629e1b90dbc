package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print account for the specific wallet",
	Long:  "Print the account for the wallet and, when a ledger is named, whether it is the beneficiary.",
	Run:   accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(crypto.PubkeyToAddress(privateKey.PublicKey).Hex())

	if ledgerAddress == "" {
		return
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

	fmt.Println("Beneficiary:", st.Beneficiary.Hex(), "You:", st.IsBeneficiary)
}
