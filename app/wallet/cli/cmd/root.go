// Package cmd contains the tip jar wallet app.
package cmd

import (
	"context"
	"crypto/ecdsa"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ardanlabs/tipjar/business/core/jar"
	"github.com/ardanlabs/tipjar/foundation/logger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger"
	"github.com/ardanlabs/tipjar/foundation/tipjar/ledger/evm"
	"github.com/spf13/cobra"
)

var (
	accountName   string
	accountPath   string
	rpcURL        string
	ledgerAddress string
	verbose       bool
)

const (
	keyExtension = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Path to the private key.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&rpcURL, "rpc", "r", "http://localhost:8545", "Url of the RPC endpoint.")
	rootCmd.PersistentFlags().StringVarP(&ledgerAddress, "ledger", "l", os.Getenv("TIPJAR_LEDGER_ADDRESS"), "Address of the tip jar contract.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print component events.")
}

var rootCmd = &cobra.Command{
	Use:   "tipjar",
	Short: "Tip jar wallet",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	if !strings.HasSuffix(accountName, keyExtension) {
		accountName += keyExtension
	}

	return filepath.Join(accountPath, accountName)
}

// openJar connects to the RPC endpoint and wires the tip jar around the
// configured contract with the wallet key connected.
func openJar(ctx context.Context, privateKey *ecdsa.PrivateKey) (*jar.Jar, error) {
	settings := ledger.Settings{Address: ledgerAddress}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	ev := func(v string, args ...any) {}
	if verbose {
		log, err := logger.New("TIPJAR-CLI", "stderr")
		if err != nil {
			return nil, err
		}
		ev = func(v string, args ...any) {
			log.Infof(v, args...)
		}
	}

	client, err := evm.Dial(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	l, err := evm.New(ctx, evm.Config{
		Client:     client,
		Address:    settings.LedgerAddress(),
		PrivateKey: privateKey,
		EvHandler:  ev,
	})
	if err != nil {
		return nil, err
	}

	return jar.New(ctx, jar.Config{
		Settings:     settings,
		Ledger:       l,
		Transport:    l,
		Wallet:       l.From(),
		PollInterval: time.Second,
		PollTimeout:  waitFor,
		EvHandler:    ev,
	})
}
