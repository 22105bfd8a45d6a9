package main

import (
	"os"

	"github.com/MEKXH/wabridge/cmd/wabridge/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
