// Package logger holds the process-wide logrus logger used by apiunit.
package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LevelEnv selects the log level (trace, debug, info, warn, error).
const LevelEnv = "APIUNIT_LOG_LEVEL"

var (
	instance *logrus.Logger
	once     sync.Once
)

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	log.SetLevel(logrus.InfoLevel)

	if raw := os.Getenv(LevelEnv); raw != "" {
		level, err := logrus.ParseLevel(raw)
		if err != nil {
			log.Warnf("ignoring %s=%q: %s", LevelEnv, raw, err)
		} else {
			log.SetLevel(level)
		}
	}

	return log
}

// Logger returns the shared logger, creating it on first use.
func Logger() *logrus.Logger {
	once.Do(func() {
		instance = newLogger()
	})

	return instance
}
