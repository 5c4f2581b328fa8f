package main

import (
	"os"

	"github.com/stefankarschti/inputosm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
