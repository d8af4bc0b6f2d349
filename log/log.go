// Package log holds the process-wide slog logger. Keeping it in its own
// package avoids every caller re-threading a logger through call sites
// that only ever want the one configured at startup.
package log

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/dataops-ch/emrctl/flags"
)

// Base is a bare logger without attributes
var Base *slog.Logger

// logger carries the default component attribute
var logger *slog.Logger

func Init() error {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(viper.GetString(flags.LogLevel))); err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	options := slog.HandlerOptions{
		AddSource: viper.GetBool(flags.LogSource),
		Level:     logLevel,
	}

	switch format := viper.GetString(flags.LogFormat); format {
	case "json":
		Base = slog.New(slog.NewJSONHandler(os.Stderr, &options))
	case "text":
		Base = slog.New(slog.NewTextHandler(os.Stderr, &options))
	default:
		return fmt.Errorf("unknown log format '%s'", format)
	}

	logger = Base.With("component", "emrctl")
	return nil
}

// Proxies for slog.Logger methods

func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

func With(args ...any) *slog.Logger {
	return logger.With(args...)
}
