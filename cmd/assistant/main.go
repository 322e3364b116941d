package main

import (
	"os"

	"github.com/yungbote/restoration-assistant/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
