// cmd/driver/main.go
//
// driver owns the sleep/retry loop around the drip engine: the core never
// loops or sleeps on its own.
package main

import (
	"os"

	"github.com/harborpress/outreach-engine/internal/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Log.Error(err)
		os.Exit(1)
	}
}
