package main

import (
	"os"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/cmd/peersim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
