package main

import (
	"os"

	"github.com/hydroforge/hydroforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
