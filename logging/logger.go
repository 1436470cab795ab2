// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a contextual OpsLogger, used by the
// orchestrator and the upstream clients to attach component and agent
// identifiers to every entry.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the minimal logging interface for QuantMesh.
// This allows users to provide their own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewSlogLogger builds a Logger writing structured records to stdout.
// Format is "json" or "text".
func NewSlogLogger(level LogLevel, format string, addSource bool) Logger {
	return NewSlogLoggerWithOutput(level, format, addSource, os.Stdout)
}

// NewSlogLoggerWithOutput builds a Logger writing to the given writer.
func NewSlogLoggerWithOutput(level LogLevel, format string, addSource bool, out io.Writer) Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(level), AddSource: addSource}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a LogLevel.
// Unknown values default to info.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LogLevelDebug
	case "warn":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// OpsLogger decorates a Logger with sticky key/value context and domain
// convenience methods for agent and upstream-call logging. With* methods
// return clones, so one base logger fans out into per-component and
// per-agent loggers. OpsLogger itself satisfies Logger.
type OpsLogger struct {
	inner Logger
	attrs []any
}

// NewOpsLogger wraps the given Logger. A nil inner logger produces a silent
// OpsLogger.
func NewOpsLogger(inner Logger) *OpsLogger {
	if inner == nil {
		inner = NoOpLogger{}
	}
	return &OpsLogger{inner: inner}
}

// With returns a clone carrying additional key/value attributes attached to
// every entry.
func (l *OpsLogger) With(args ...any) *OpsLogger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &OpsLogger{inner: l.inner, attrs: attrs}
}

// WithComponent tags entries with the logical component (bus, orchestrator,
// marketdata, facilitator, server).
func (l *OpsLogger) WithComponent(c string) *OpsLogger { return l.With("component", c) }

// WithAgent tags entries with the agent identifier.
func (l *OpsLogger) WithAgent(id string) *OpsLogger { return l.With("agent_id", id) }

func (l *OpsLogger) merge(args []any) []any {
	if len(l.attrs) == 0 {
		return args
	}
	out := make([]any, 0, len(l.attrs)+len(args))
	out = append(out, l.attrs...)
	out = append(out, args...)
	return out
}

// Debug logs at debug level with the sticky attributes prepended.
func (l *OpsLogger) Debug(msg string, args ...any) { l.inner.Debug(msg, l.merge(args)...) }

// Info logs at info level with the sticky attributes prepended.
func (l *OpsLogger) Info(msg string, args ...any) { l.inner.Info(msg, l.merge(args)...) }

// Warn logs at warn level with the sticky attributes prepended.
func (l *OpsLogger) Warn(msg string, args ...any) { l.inner.Warn(msg, l.merge(args)...) }

// Error logs at error level with the sticky attributes prepended.
func (l *OpsLogger) Error(msg string, args ...any) { l.inner.Error(msg, l.merge(args)...) }

// LogAgentCall records execution details for one agent invocation. A nil
// error logs at info level, a failure at warn.
func (l *OpsLogger) LogAgentCall(agentID, operation string, dur time.Duration, err error) {
	if err != nil {
		l.Warn("agent call failed", "agent_id", agentID, "operation", operation, "duration", dur, "error", err)
		return
	}
	l.Info("agent call completed", "agent_id", agentID, "operation", operation, "duration", dur)
}

// LogUpstreamCall records latency and outcome of an external service call
// (market data, chain, settlement facilitator, AI provider).
func (l *OpsLogger) LogUpstreamCall(service string, dur time.Duration, err error) {
	if err != nil {
		l.Warn("upstream call failed", "service", service, "duration", dur, "error", err)
		return
	}
	l.Debug("upstream call completed", "service", service, "duration", dur)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
