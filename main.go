package main

import (
	"os"

	"github.com/ziadkadry99/draw2ui/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
