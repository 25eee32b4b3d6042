package main

import (
	"fmt"
	"os"

	"github.com/alapierre/go-quickpay/cmd/quickpay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(commands.Code(err))
	}
}
