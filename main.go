package main

import (
	"os"

	"github.com/grovetools/release-plz-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
