package main

import (
	"github.com/moka-guys/negneg/internal/cli"
)

func main() {
	cli.Execute()
}
