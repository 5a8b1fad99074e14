package main

import (
	"github.com/amanicare/labwatch/pkg/cli"
)

func main() {
	cli.Execute()
}
