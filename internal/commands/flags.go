package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dmitrymomot/quicksilver/core/logger"
)

// Flags holds global flag values shared by every command.
type Flags struct {
	LogLevel  string
	LogFormat string
	Store     string

	Logger *slog.Logger
	Out    io.Writer
}

// SetupLogger builds the process logger from the global flags. Logs go to
// stderr so stdout stays reserved for command output.
func (f *Flags) SetupLogger() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.LogLevel)); err != nil {
		return fmt.Errorf("parse log level %q: %w", f.LogLevel, err)
	}

	opts := []logger.Option{
		logger.WithLevel(level),
		logger.WithOutput(os.Stderr),
		logger.WithAttr(logger.Component("quicksilver"), logger.Store(f.Store)),
	}
	switch strings.ToLower(f.LogFormat) {
	case "json":
		opts = append(opts, logger.WithJSONFormatter())
	case "", "text":
		opts = append(opts, logger.WithTextFormatter())
	default:
		return fmt.Errorf("unknown log format %q", f.LogFormat)
	}

	f.Logger = logger.New(opts...)
	logger.SetAsDefault(f.Logger)
	return nil
}

func (f *Flags) out() io.Writer {
	if f.Out != nil {
		return f.Out
	}
	return os.Stdout
}
