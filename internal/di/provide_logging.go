package di

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

// ProvideLogger creates a new zerolog.Logger configured for the runtime environment.
// In Lambda (when AWS_LAMBDA_RUNTIME_API is set), it uses JSON format.
// In terminal/CLI, it uses console format with pretty printing.
// LOG_LEVEL overrides the default info level.
func ProvideLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Running in Lambda - use JSON format
		return zerolog.New(os.Stdout).
			Level(level).
			With().
			Timestamp().
			Logger()
	}

	// Running in terminal - use console format with colors
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// ProvideContext returns the startup context carrying logger.
func ProvideContext(logger zerolog.Logger) context.Context {
	return logger.WithContext(context.Background())
}
