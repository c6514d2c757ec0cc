package main

import (
	"os"

	"github.com/majorcontext/opensig/cmd/opensig/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
