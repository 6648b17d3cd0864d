package main

import (
	"os"

	"github.com/vasilisp/autopost/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:]))
}
