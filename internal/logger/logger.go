package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for building the service logger.
type Config struct {
	Level   string    // "debug", "info", ...; defaults to info
	Pretty  bool      // human readable console output
	Output  io.Writer // defaults to os.Stdout
	Service string
}

// New builds the base logger every component derives from.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Output != nil {
		out = cfg.Output
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	service := cfg.Service
	if service == "" {
		service = "replay-director"
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
