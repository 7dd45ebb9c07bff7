package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. The zero value discards everything
// until Init runs, so packages can take child loggers at construction
// time regardless of wiring order.
var Logger zerolog.Logger

// Config holds logging configuration.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown or empty values
	// fall back to info.
	Level string

	// JSON selects machine-readable output. When false, logs render
	// through a console writer for local development.
	JSON bool

	// Output defaults to stdout.
	Output io.Writer
}

// Init builds the global logger and sets the process-wide level.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// WithComponent returns a child logger stamped with the component name.
// Every long-lived worker and service holds one of these.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
