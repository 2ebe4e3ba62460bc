package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger with field helpers for the identifiers
// that recur across the stock service.
type Logger struct {
	zerolog.Logger
}

// New builds a service-scoped logger. Development environments get the
// human-readable console writer, everything else structured JSON.
func New(serviceName string, environment string) *Logger {
	var output io.Writer = os.Stdout
	if environment == "development" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	base := zerolog.New(output).With().Timestamp().Str("service", serviceName).Logger()
	return &Logger{Logger: base}
}

func (l *Logger) withField(key, value string) *Logger {
	return &Logger{Logger: l.Logger.With().Str(key, value).Logger()}
}

// WithRequestID returns a logger with the request ID attached.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.withField("request_id", requestID)
}

// WithActor returns a logger with the acting user attached.
func (l *Logger) WithActor(actorID string) *Logger {
	return l.withField("actor_id", actorID)
}

// WithComponent returns a logger with the component name attached.
func (l *Logger) WithComponent(component string) *Logger {
	return l.withField("component", component)
}

// WithItem returns a logger with the stock item id attached.
func (l *Logger) WithItem(itemID string) *Logger {
	return l.withField("item_id", itemID)
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With().Err(err).Logger()}
}
