package main

import (
	"os"

	"github.com/tilsley/dirpack/apps/server/internal/cli"
	"github.com/tilsley/dirpack/pkg/logging"
)

func main() {
	log := logging.New()
	if err := cli.NewRootCmd(log).Execute(); err != nil {
		log.Error("dirpack failed", "error", err)
		os.Exit(1)
	}
}
