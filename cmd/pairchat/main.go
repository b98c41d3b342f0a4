package main

import "github.com/mcoot/pairchat/internal/cli"

func main() {
	cli.Execute()
}
