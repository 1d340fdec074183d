package main

import (
	"os"

	"lastmodified/cmd/lastmod/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
