package main

import (
	"os"

	"github.com/caretrace/caretrace/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
