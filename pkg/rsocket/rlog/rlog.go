// Package rlog provides the minimal leveled logging surface used across the
// engine. The core never depends on a concrete logging backend; it depends
// on this interface, following the teacher's convention of keeping optional
// concerns pluggable behind small interfaces (compare pkg/http's Handler).
package rlog

import (
	"log"
	"os"
)

// Logger is the leveled logging capability the connection and stream state
// machines accept. All methods must be safe to call from the connection's
// executor goroutine; implementations that fan out to slower sinks should
// buffer or drop rather than block it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Nop discards everything. It is the default when no Logger is configured.
type Nop struct{}

func (Nop) Debugf(string, ...interface{}) {}
func (Nop) Infof(string, ...interface{})  {}
func (Nop) Warnf(string, ...interface{})  {}
func (Nop) Errorf(string, ...interface{}) {}

// Std adapts the standard library's *log.Logger, gated by a minimum Level.
type Std struct {
	L     *log.Logger
	Level Level
}

// Level orders the severities Std will emit.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// NewStd returns a Std logger writing to stderr at LevelInfo.
func NewStd() *Std {
	return &Std{L: log.New(os.Stderr, "rsocket: ", log.LstdFlags), Level: LevelInfo}
}

func (s *Std) Debugf(format string, args ...interface{}) {
	if s.Level <= LevelDebug {
		s.L.Printf("DEBUG "+format, args...)
	}
}

func (s *Std) Infof(format string, args ...interface{}) {
	if s.Level <= LevelInfo {
		s.L.Printf("INFO "+format, args...)
	}
}

func (s *Std) Warnf(format string, args ...interface{}) {
	if s.Level <= LevelWarn {
		s.L.Printf("WARN "+format, args...)
	}
}

func (s *Std) Errorf(format string, args ...interface{}) {
	if s.Level <= LevelError {
		s.L.Printf("ERROR "+format, args...)
	}
}
