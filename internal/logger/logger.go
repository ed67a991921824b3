package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

const EnvDev = "dev"

// New returns a logger writing to w: human-readable in dev, JSON otherwise.
func New(env, level string, w io.Writer) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if env == EnvDev {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "roamchat").Logger(), nil
}
