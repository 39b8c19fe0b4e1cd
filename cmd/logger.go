package cmd

import (
	"github.com/sirupsen/logrus"
)

// newLogger returns the shared logger, switched to debug when verbose is set.
func newLogger(verbose bool) *logrus.Logger {
	if verbose {
		Logger.SetLevel(logrus.DebugLevel)
	}

	return Logger
}
