package main

import (
	"os"

	"github.com/dean0x/devlog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
