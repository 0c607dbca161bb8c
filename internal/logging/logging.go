// Package logging builds the structured logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and destination of the logger.
type Options struct {
	Level   string
	File    string // rotating log file; empty logs to Out only
	Out     io.Writer
	NoColor bool
}

// New creates the logger. When File is set, entries go to the rotating file
// instead of Out so console output stays readable.
func New(opts Options) (*log.Logger, error) {
	logs := &log.Logger{
		Formatter: &log.TextFormatter{
			DisableColors:    opts.NoColor,
			FullTimestamp:    true,
			TimestampFormat:  "2006-01-02 15:04:05",
			QuoteEmptyFields: true,
		},
		Hooks: make(log.LevelHooks),
		Out:   opts.Out,
	}
	if logs.Out == nil {
		logs.Out = os.Stderr
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	logs.Level = level

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logs.Out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		logs.Formatter = &log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	}
	return logs, nil
}

// ParseLevel maps a config level name to a logrus level; "" means info.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// Close releases the rotating file, if any.
func Close(logs *log.Logger) error {
	if c, ok := logs.Out.(io.Closer); ok && logs.Out != os.Stderr && logs.Out != os.Stdout {
		return c.Close()
	}
	return nil
}
