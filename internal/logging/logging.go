// Package logging constructs the process-wide structured logger.
//
// Grounded on the teacher's logrus usage in pkg/depsgraph/graph.go and
// pkg/depsgraph/builder.go (logrus.New(), logger.WithError(err).Warnf(...)).
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a *logrus.Logger whose level is controlled by verbose and the
// RELEASE_PLZ_LOG environment variable (verbose wins when both are set).
func New(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level := logrus.InfoLevel
	if v := os.Getenv("RELEASE_PLZ_LOG"); v != "" {
		if parsed, err := logrus.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	if verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	return log
}
