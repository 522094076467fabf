package main

import (
	"os"

	"github.com/TheusHen/idms/cmd/idms/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
