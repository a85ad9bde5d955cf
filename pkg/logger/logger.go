package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr, false)
)

func newLogger(w io.Writer, jsonOutput bool) zerolog.Logger {
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// Init configures level and output format in one call.
func Init(level string, jsonOutput bool) {
	mu.Lock()
	log = newLogger(os.Stderr, jsonOutput).Level(parseLevel(level))
	mu.Unlock()
}

// SetOutput redirects log output, keeping the current level.
func SetOutput(w io.Writer) {
	mu.Lock()
	lvl := log.GetLevel()
	log = zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	mu.Unlock()
}

func SetLevel(level string) {
	mu.Lock()
	log = log.Level(parseLevel(level))
	mu.Unlock()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func emit(ev *zerolog.Event, component, msg string, fields map[string]interface{}) {
	if ev == nil {
		return
	}
	if component != "" {
		ev = ev.Str("component", component)
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func DebugCF(component, msg string, fields map[string]interface{}) {
	l := current()
	emit(l.Debug(), component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	l := current()
	emit(l.Info(), component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	l := current()
	emit(l.Warn(), component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	l := current()
	emit(l.Error(), component, msg, fields)
}

func InfoC(component, msg string) {
	InfoCF(component, msg, nil)
}

func ErrorC(component, msg string) {
	ErrorCF(component, msg, nil)
}
