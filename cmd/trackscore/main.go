package main

import (
	"github.com/mchmarny/trackscore/pkg/cli"
)

func main() {
	cli.Execute()
}
