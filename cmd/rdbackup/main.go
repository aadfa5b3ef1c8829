package main

import (
	"os"

	"rdbackup/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
