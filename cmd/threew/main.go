package main

import (
	"os"

	"github.com/Kaelzs/ThreeW/internal/cli"
)

func main() {
	// cli.Execute prints the error itself.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
