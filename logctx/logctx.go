// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logctx provides subsystem-tagged leveled loggers backed by a
// rotating log file, following the reference daemon's logger package. That
// package's own backend, github.com/daglabs/btcd/logs, is an internal
// sibling module not available to this repository, so Logger/Level below
// reimplement the minimal leveled-writer contract it exposed (see
// DESIGN.md).
package logctx

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/jrick/logrotate/rotator"
)

// Level is a logging severity.
type Level int32

// Supported severities, ordered so Level comparisons gate verbosity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

// LevelFromString parses a level name, defaulting to LevelInfo for anything
// unrecognized.
func LevelFromString(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "off":
		return LevelOff
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DBG"
	case LevelInfo:
		return "INF"
	case LevelWarn:
		return "WRN"
	case LevelError:
		return "ERR"
	default:
		return "OFF"
	}
}

// Logger writes leveled, subsystem-tagged lines to the shared rotator.
type Logger struct {
	tag   string
	level int32 // atomic Level
}

func newLogger(tag string) *Logger {
	return &Logger{tag: tag, level: int32(LevelInfo)}
}

// SetLevel changes the minimum severity this logger emits.
func (l *Logger) SetLevel(level Level) { atomic.StoreInt32(&l.level, int32(level)) }

// Level returns the logger's current minimum severity.
func (l *Logger) Level() Level { return Level(atomic.LoadInt32(&l.level)) }

func (l *Logger) log(level Level, args ...interface{}) {
	if level < l.Level() {
		return
	}
	line := fmt.Sprintf("%s [%s] %s %s\n", time.Now().UTC().Format(time.RFC3339), level, l.tag, fmt.Sprint(args...))
	write(line)
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}
	line := fmt.Sprintf("%s [%s] %s %s\n", time.Now().UTC().Format(time.RFC3339), level, l.tag, fmt.Sprintf(format, args...))
	write(line)
}

// Debug, Info, Warn and Error log at their named severity.
func (l *Logger) Debug(args ...interface{}) { l.log(LevelDebug, args...) }
func (l *Logger) Info(args ...interface{})  { l.log(LevelInfo, args...) }
func (l *Logger) Warn(args ...interface{})  { l.log(LevelWarn, args...) }
func (l *Logger) Error(args ...interface{}) { l.log(LevelError, args...) }

// Debugf, Infof, Warnf and Errorf are the printf-style counterparts.
func (l *Logger) Debugf(format string, args ...interface{}) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.logf(LevelError, format, args...) }

var (
	rotatorHandle *rotator.Rotator
	initiated     bool
)

func write(line string) {
	os.Stdout.WriteString(line) //nolint:errcheck
	if initiated {
		rotatorHandle.Write([]byte(line)) //nolint:errcheck
	}
}

// Init points every subsequent log line at a rotating file under logFile,
// creating its directory if needed. It must be called once during startup
// before subsystem loggers are used for anything but stdout output.
func Init(logFile string) error {
	dir := filepath.Dir(logFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024*1024, false, 3)
	if err != nil {
		return fmt.Errorf("create log rotator: %w", err)
	}
	rotatorHandle = r
	initiated = true
	return nil
}

// Subsystem tags, one per major component, matching the teacher's
// short-code convention.
const (
	TagSession    = "SESS"
	TagController = "CTRL"
	TagHistory    = "HIST"
	TagMempool    = "MEMP"
	TagStorage    = "STOR"
	TagRPCClient  = "RPCC"
	TagConfig     = "CNFG"
	TagNotify     = "NTFY"
)

var subsystems = map[string]*Logger{
	TagSession:    newLogger(TagSession),
	TagController: newLogger(TagController),
	TagHistory:    newLogger(TagHistory),
	TagMempool:    newLogger(TagMempool),
	TagStorage:    newLogger(TagStorage),
	TagRPCClient:  newLogger(TagRPCClient),
	TagConfig:     newLogger(TagConfig),
	TagNotify:     newLogger(TagNotify),
}

// Get returns the shared Logger for tag, creating one on first use.
func Get(tag string) *Logger {
	if l, ok := subsystems[tag]; ok {
		return l
	}
	l := newLogger(tag)
	subsystems[tag] = l
	return l
}

// SetLevels sets every subsystem logger's level at once, for use at startup
// once the configured verbosity is known.
func SetLevels(level Level) {
	for _, l := range subsystems {
		l.SetLevel(level)
	}
}
