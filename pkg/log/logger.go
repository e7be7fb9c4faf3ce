package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Category selects which log stream a message belongs to.
type Category int

const (
	Application Category = iota
	DiscordEvents
	Database
	Errors
)

// Options controls where logs go and how files rotate.
type Options struct {
	// Dir is the directory for the rotating log files. Empty disables file output.
	Dir string
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string
	// MaxSizeMB is the size at which a log file is rotated.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept per stream.
	MaxBackups int
	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int
	// Quiet suppresses the stdout copy of non-error streams.
	Quiet bool
}

// Logger holds one slog.Logger per category plus the rotating files behind them.
type Logger struct {
	application *slog.Logger
	discord     *slog.Logger
	database    *slog.Logger
	error       *slog.Logger

	files []*lumberjack.Logger
}

var (
	// GlobalLogger is set by SetupLogger. Accessors fall back to stderr when it is nil.
	GlobalLogger *Logger

	mu       sync.RWMutex
	fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// SetupLogger configures the package loggers. Calling it again replaces the previous
// configuration and closes its files.
func SetupLogger(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	l := &Logger{}
	stream := func(name string, console io.Writer) (*slog.Logger, error) {
		var writers []io.Writer
		if console != nil {
			writers = append(writers, console)
		}
		if opts.Dir != "" {
			if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log dir: %w", err)
			}
			f := &lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, name),
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
				Compress:   true,
			}
			l.files = append(l.files, f)
			writers = append(writers, f)
		}
		if len(writers) == 0 {
			writers = append(writers, io.Discard)
		}
		return slog.New(slog.NewTextHandler(io.MultiWriter(writers...), handlerOpts)), nil
	}

	var console io.Writer = os.Stdout
	if opts.Quiet {
		console = nil
	}
	if l.application, err = stream("application.log", console); err != nil {
		return err
	}
	if l.discord, err = stream("discord_events.log", console); err != nil {
		return err
	}
	if l.database, err = stream("database.log", console); err != nil {
		return err
	}
	if l.error, err = stream("error.log", os.Stderr); err != nil {
		return err
	}

	mu.Lock()
	prev := GlobalLogger
	GlobalLogger = l
	mu.Unlock()
	if prev != nil {
		_ = prev.Sync()
	}
	return nil
}

// Sync closes the rotating files. Safe on a nil receiver.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// For returns the logger for a category.
func For(c Category) *slog.Logger {
	mu.RLock()
	l := GlobalLogger
	mu.RUnlock()
	if l == nil {
		return fallback
	}
	switch c {
	case DiscordEvents:
		return l.discord
	case Database:
		return l.database
	case Errors:
		return l.error
	default:
		return l.application
	}
}

func ApplicationLogger() *slog.Logger { return For(Application) }
func DiscordLogger() *slog.Logger     { return For(DiscordEvents) }
func DatabaseLogger() *slog.Logger    { return For(Database) }

// ErrorLoggerRaw returns the error stream logger.
func ErrorLoggerRaw() *slog.Logger { return For(Errors) }

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
