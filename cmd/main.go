package main

import "github.com/canopy-network/batchdex/cmd/cli"

func main() {
	cli.Execute()
}
