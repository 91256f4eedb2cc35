// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vcpu

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logging type used throughout this module; the
// root package, workpool and rpcframe log through it, while event and ring
// do not log.
//
// Logging is deliberately a package-level global rather than per-Runtime
// configuration: it's an infrastructure cross-cutting concern shared by
// every VCPU instance in a process, and threading a logger through every
// constructor would bloat their surface area for no benefit.
type Logger = logiface.Logger[*stumpy.Event]

var globalLogger struct {
	sync.RWMutex
	logger *Logger
}

// SetLogger installs the process-wide structured logger used by this module
// and its subpackages. Passing nil restores the default (stderr, Info level).
func SetLogger(l *Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = l
}

// Log returns the process-wide structured logger, defaulting to a
// stumpy-backed stderr writer at Info level if none has been installed.
func Log() *Logger {
	globalLogger.RLock()
	l := globalLogger.logger
	globalLogger.RUnlock()
	if l != nil {
		return l
	}
	return defaultLogger()
}

var defaultLoggerOnce sync.Once
var defaultLoggerInst *Logger

func defaultLogger() *Logger {
	defaultLoggerOnce.Do(func() {
		defaultLoggerInst = stumpy.L.New(
			stumpy.L.WithStumpy(),
			stumpy.L.WithLevel(logiface.LevelInformational),
		)
	})
	return defaultLoggerInst
}

// componentLog builds a sub-builder tagged with the originating component,
// e.g. "vcpu", "runtime", "signal".
func componentLog(level logiface.Level, component string) *logiface.Builder[*stumpy.Event] {
	return Log().Build(level).Str("component", component)
}
