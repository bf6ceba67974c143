// Package logging provides structured logging using bolt.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/felixgeelhaar/bolt/v3"
)

var (
	defaultLogger *bolt.Logger
	mu            sync.Mutex
)

// Config configures the logger.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string

	// Format is json or console.
	Format string

	Output io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: os.Stdout,
	}
}

func parseLevel(s string) bolt.Level {
	switch s {
	case "debug":
		return bolt.DEBUG
	case "warn":
		return bolt.WARN
	case "error":
		return bolt.ERROR
	default:
		return bolt.INFO
	}
}

// Init replaces the default logger.
func Init(config Config) {
	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	var handler bolt.Handler
	if config.Format == "json" {
		handler = bolt.NewJSONHandler(output)
	} else {
		handler = bolt.NewConsoleHandler(output)
	}

	mu.Lock()
	defaultLogger = bolt.New(handler).SetLevel(parseLevel(config.Level))
	mu.Unlock()
}

// Get returns the default logger, initializing it on first use.
func Get() *bolt.Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		Init(DefaultConfig())
		return Get()
	}
	return l
}

// LogEvent lets Fields be chained onto a bolt.Event.
type LogEvent struct {
	event *bolt.Event
}

func (l *LogEvent) Add(f Field) *LogEvent {
	l.event = f(l.event)
	return l
}

func (l *LogEvent) Msg(msg string) {
	l.event.Msg(msg)
}

func Debug() *LogEvent {
	return &LogEvent{event: Get().Debug()}
}

func Info() *LogEvent {
	return &LogEvent{event: Get().Info()}
}

func Warn() *LogEvent {
	return &LogEvent{event: Get().Warn()}
}

func Error() *LogEvent {
	return &LogEvent{event: Get().Error()}
}
