package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the service logger. Components receive it at construction
// time; there is no package-level instance.
func New(level string) *logrus.Logger {
	log := logrus.New()

	// Output to stdout instead of the default stderr
	log.Out = os.Stdout

	// Set JSON formatter for structured logging
	log.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}
