package main

import (
	"os"

	"github.com/solatis/ruletree/cmd/ruletree/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
