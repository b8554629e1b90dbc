package main

import "github.com/ardanlabs/tipjar/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
