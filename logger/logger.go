package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Logger is the logging surface the rest of codewizard depends on.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	WithField(key string, value interface{}) Logger
}

// InitLogger opens ~/.codewizard/codewizard.log, truncating the previous run's log.
// The returned closer releases the file.
func InitLogger(verbose bool) (Logger, io.Closer, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".codewizard")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	logFile, err := os.OpenFile(filepath.Join(dir, "codewizard.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return New(logFile, verbose), logFile, nil
}

// New returns a Logger writing JSON lines to w.
func New(w io.Writer, verbose bool) Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &ZerologAdapter{logger: &zl}
}

// ZerologAdapter adapts zerolog.Logger to our Logger interface
type ZerologAdapter struct {
	logger *zerolog.Logger
}

func (z *ZerologAdapter) Debug(msg string) { z.logger.Debug().Msg(msg) }
func (z *ZerologAdapter) Info(msg string)  { z.logger.Info().Msg(msg) }
func (z *ZerologAdapter) Warn(msg string)  { z.logger.Warn().Msg(msg) }
func (z *ZerologAdapter) Error(msg string) { z.logger.Error().Msg(msg) }
func (z *ZerologAdapter) Fatal(msg string) { z.logger.Fatal().Msg(msg) }
func (z *ZerologAdapter) WithField(key string, value interface{}) Logger {
	newLogger := z.logger.With().Interface(key, value).Logger()
	return &ZerologAdapter{logger: &newLogger}
}

type NullLogger struct{}

func (NullLogger) Debug(msg string) {}
func (NullLogger) Info(msg string)  {}
func (NullLogger) Warn(msg string)  {}
func (NullLogger) Error(msg string) {}
func (NullLogger) Fatal(msg string) {}
func (NullLogger) WithField(key string, value interface{}) Logger {
	return NullLogger{}
}

func NewNullLogger() Logger {
	return NullLogger{}
}
