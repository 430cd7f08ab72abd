package main

import (
	"os"

	"github.com/systemshift/memex-vcs/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
