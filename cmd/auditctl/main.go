package main

import (
	"os"

	"github.com/huangang/auditdesk/backend/pkg/logger"
)

func main() {
	if err := newRootCommand(openApp).Execute(); err != nil {
		logger.Error().Err(err).Msg("auditctl failed")
		os.Exit(1)
	}
}
