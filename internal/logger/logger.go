package logger

import (
	"os"

	"github.com/rs/zerolog"
)

const serviceName = "permit-service"

func New(env string) zerolog.Logger {
	log := zerolog.New(os.Stderr).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger().
		Level(levelFor(env))
	if env == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log
}

func levelFor(env string) zerolog.Level {
	switch env {
	case "development":
		return zerolog.DebugLevel
	case "test":
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
