package main

import (
	"context"
	"os"

	"github.com/carlo-colombo/cashsplitter/cmd/cashsplitter/commands"
	"github.com/carlo-colombo/cashsplitter/pkg/logging"
)

func main() {
	logging.Setup()
	if err := commands.Run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
