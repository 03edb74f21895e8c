package main

import (
	"os"

	"github.com/gmsas95/myrai-care/internal/cli"
)

var version = "dev"

func main() {
	cli.Version = version
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
