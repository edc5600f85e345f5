package main

import "order-matching-engine/src/cli"

func main() {
	cli.Execute()
}
