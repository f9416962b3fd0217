package internal

import (
	"fmt"
	"log/slog"
	"os"
)

// Logger is the logger shared by the deploy pipeline and the xDS snapshot
// cache. Debug and Info output is suppressed unless Debug is set.
type Logger struct {
	Debug bool

	// Slog receives every record. Nil means a text handler on stderr.
	Slog *slog.Logger
}

// NewLogger returns a Logger writing text records to stderr.
func NewLogger(debug bool) Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return Logger{Debug: debug, Slog: slog.New(h)}
}

// With returns a copy of the logger carrying the given attributes.
func (logger Logger) With(args ...any) Logger {
	logger.Slog = logger.base().With(args...)
	return logger
}

func (logger Logger) base() *slog.Logger {
	if logger.Slog == nil {
		return slog.Default()
	}
	return logger.Slog
}

func (logger Logger) Debugf(format string, args ...interface{}) {
	if logger.Debug {
		logger.base().Debug(fmt.Sprintf(format, args...))
	}
}

// Infof is gated on Debug; the snapshot cache logs every watch at this level.
func (logger Logger) Infof(format string, args ...interface{}) {
	if logger.Debug {
		logger.base().Info(fmt.Sprintf(format, args...))
	}
}

func (logger Logger) Warnf(format string, args ...interface{}) {
	logger.base().Warn(fmt.Sprintf(format, args...))
}

func (logger Logger) Errorf(format string, args ...interface{}) {
	logger.base().Error(fmt.Sprintf(format, args...))
}

// Printf always emits at info level.
func (logger Logger) Printf(format string, args ...interface{}) {
	logger.base().Info(fmt.Sprintf(format, args...))
}
