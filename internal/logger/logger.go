// Package logger builds the process-wide zerolog logger from configuration.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"matchbook/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Setup returns a logger writing at the configured level, format and output,
// and installs it as the global log.Logger.
func Setup(cfg config.LoggingConfig) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
		}
	}

	out, err := output(cfg)
	if err != nil {
		return zerolog.Nop(), err
	}

	switch cfg.Format {
	case "console", "":
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339Nano,
			NoColor:    !isTerminal(cfg.Output),
		}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format '%s'", cfg.Format)
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

func output(cfg config.LoggingConfig) (io.Writer, error) {
	switch cfg.Output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		// Assume it's a file path
		if cfg.MaxSizeMB <= 0 {
			return nil, fmt.Errorf("max_size_mb must be set for file output '%s'", cfg.Output)
		}
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}, nil
	}
}

func isTerminal(output string) bool {
	return output == "stdout" || output == "stderr" || output == ""
}
