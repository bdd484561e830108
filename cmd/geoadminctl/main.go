package main

import (
	"os"

	"geoadmin-go/cmd/geoadminctl/tool/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
