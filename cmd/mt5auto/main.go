package main

import (
	"os"

	"github.com/prathan03/mt5-auto-trade/cmd/mt5auto/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
