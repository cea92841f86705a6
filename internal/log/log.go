// Package log provides the engine's structured logging, a thin
// convenience layer over zerolog. The engine facade and lsmkvctl use it.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-level logger that WithComponent and
// WithNamespace derive child loggers from.
var Logger zerolog.Logger

// Level is a logging verbosity level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the package-level logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

func init() {
	// A usable default so packages that never call Init (e.g. unit tests
	// that import a component directly) still get sane output instead of
	// a zero-value logger that discards everything silently.
	Init(Config{Level: InfoLevel})
}

// Init (re)configures the package-level logger. Safe to call more than
// once; this package's init calls it at InfoLevel, and lsmkvctl calls it
// again from its --log-level and --log-json flags. engine.New does not
// call it.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagged with the component name
// (e.g. "engine", "vacuum", "lock").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithNamespace returns a child logger tagged with the namespace a
// component instance is operating on.
func WithNamespace(component, namespace string) zerolog.Logger {
	return Logger.With().Str("component", component).Str("namespace", namespace).Logger()
}
