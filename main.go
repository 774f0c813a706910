package main

import "github.com/muxbench/tbench/internal/cli"

func main() {
	cli.Execute()
}
