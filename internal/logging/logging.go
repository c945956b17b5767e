package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the process logger and installs it as the global zerolog
// logger. Development gets the console writer; everything else logs JSON.
func Setup(env, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if env == "development" {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		logger = zerolog.New(console).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	logger = logger.Level(lvl)
	log.Logger = logger
	return logger
}
