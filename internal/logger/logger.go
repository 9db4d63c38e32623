// Package logger provides the leveled logging used across cosmx-align.
//
// Log output goes to stderr. In tool-server mode stdout carries the MCP
// protocol and must never receive log lines.
package logger

import (
	"fmt"
	"log"
	"strings"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	// LogDebug - per-trial and per-stage detail
	LogDebug LogLevel = iota

	// LogInfo - one line per slide and per batch
	LogInfo

	// LogError - failures (does not call os.Exit!)
	LogError
)

var logLevelPrefix = map[LogLevel]string{
	LogDebug: "DEBUG",
	LogInfo:  "INFO",
	LogError: "ERROR",
}

// ILogger is the logging interface accepted by every component.
type ILogger interface {
	Printf(level LogLevel, format string, a ...interface{})
	Debugf(format string, a ...interface{})
	Infof(format string, a ...interface{})
	Errorf(format string, a ...interface{})
}

// ParseLogLevel maps "debug", "info" or "error" to a LogLevel. Anything
// else, including the empty string, yields LogInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogDebug
	case "error":
		return LogError
	default:
		return LogInfo
	}
}

// StdErrLogger writes through the standard library logger, which the CLI
// points at stderr.
type StdErrLogger struct {
	logLevel LogLevel
}

// NewStdErrLogger returns a logger that drops messages below level.
func NewStdErrLogger(level LogLevel) *StdErrLogger {
	return &StdErrLogger{logLevel: level}
}

func (l *StdErrLogger) Printf(level LogLevel, format string, a ...interface{}) {
	if level < l.logLevel {
		return
	}
	log.Println(logLevelPrefix[level] + ": " + fmt.Sprintf(format, a...))
}

func (l *StdErrLogger) Debugf(format string, a ...interface{}) {
	l.Printf(LogDebug, format, a...)
}

func (l *StdErrLogger) Infof(format string, a ...interface{}) {
	l.Printf(LogInfo, format, a...)
}

func (l *StdErrLogger) Errorf(format string, a ...interface{}) {
	l.Printf(LogError, format, a...)
}

func (l *StdErrLogger) SetLogLevel(level LogLevel) {
	l.logLevel = level
}

func (l *StdErrLogger) GetLogLevel() LogLevel {
	return l.logLevel
}

// NullLogger discards everything. Used in tests.
type NullLogger struct{}

func (l *NullLogger) Printf(level LogLevel, format string, a ...interface{}) {}
func (l *NullLogger) Debugf(format string, a ...interface{})                 {}
func (l *NullLogger) Infof(format string, a ...interface{})                  {}
func (l *NullLogger) Errorf(format string, a ...interface{})                 {}
