package main

import (
	"github.com/downstream-dev/downstream/cmd"
)

var version = "0.0.1"

func main() {
	cmd.Execute(version)
}
