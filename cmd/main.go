package main

import (
	"os"

	"github.com/n1-ro/recoverpro/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
