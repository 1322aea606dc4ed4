package main

import (
	"os"

	"github.com/alextrx818/matchpipe/internal/interface/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
