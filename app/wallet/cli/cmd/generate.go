package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new wallet key in the accounts folder",
	Long: "Generate a new wallet key as <account-path>/<account>.ecdsa. The file name " +
		"becomes the sender label in the tip jar name service.",
	Run: generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	path := getPrivateKeyPath()

	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("refusing to overwrite %s", path)
	}

	if err := os.MkdirAll(accountPath, 0o700); err != nil {
		log.Fatal(err)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		log.Fatal(err)
	}

	name := strings.TrimSuffix(filepath.Base(path), keyExtension)

	fmt.Println("Account:", crypto.PubkeyToAddress(privateKey.PublicKey).Hex())
	fmt.Println("Key:    ", path)
	fmt.Printf("Service: TIPJAR_WALLET_NAME=%s TIPJAR_NAME_SERVICE_FOLDER=%s\n", name, accountPath)
}
