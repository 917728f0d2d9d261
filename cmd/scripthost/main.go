package main

import (
	"github.com/nfrund/scripthost/cmd/scripthost/cmd"
)

func main() {
	cmd.Execute()
}
