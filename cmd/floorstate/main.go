package main

import "github.com/shopfloor/floorstate/services/monitor/cli"

func main() {
	cli.Execute()
}
