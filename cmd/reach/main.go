package main

import (
	"os"

	"github.com/coursekit/reach/cmd/reach/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
