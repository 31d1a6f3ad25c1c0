package main

import "github.com/dyike/StockBot/internal/cli"

func main() {
	cli.Run()
}
