package main

import "enteliwatch/internal/cli"

func main() {
	cli.Execute()
}
