package main

import "github.com/sheikh-saqib/bread-credit-ledger/internal/cli"

func main() {
	cli.Execute()
}
