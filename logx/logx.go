// Package logx is the ambient structured-logging layer for the core.
//
// The teacher (utils/logger.go) hand-rolls an ANSI-colorized logger with a
// Field key/value API. We keep that call shape — Logger.Info(msg, fields...)
// — but back it with go.uber.org/zap's Logger, the structured logger
// both sibling modules in this retrieval pack (the inos_v1 root module and
// echollama) depend on directly, instead of hand-rolling level filtering and
// ANSI escapes again.
package logx

import (
	"go.uber.org/zap"
)

// Field is a structured key/value pair, aliasing zap.Field so call sites read
// exactly like the teacher's utils/logger.go (String/Int/Err/...).
type Field = zap.Field

var (
	String   = zap.String
	Int      = zap.Int
	Uint64   = zap.Uint64
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Err      = zap.Error
	Duration = zap.Duration
	Any      = zap.Any
)

// Logger wraps a *zap.Logger scoped to one component name, mirroring
// the teacher's component-tagged Logger.
type Logger struct {
	z *zap.Logger
}

// New creates a component-scoped logger. dev selects zap's human-readable
// development encoder (colorized level, caller) over the JSON production
// encoder.
func New(component string, dev bool) *Logger {
	var z *zap.Logger
	var err error
	if dev {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{z: z.Named(component).WithOptions(zap.AddCallerSkip(1))}
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output.
func Nop() *Logger { return &Logger{z: zap.NewNop()} }

// With returns a logger with the given fields attached to every subsequent
// call.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error { return l.z.Sync() }

var global = New("vkrcore", true)

// SetGlobal replaces the package-level default logger.
func SetGlobal(l *Logger) { global = l }

func Debug(msg string, fields ...Field) { global.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { global.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { global.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { global.Error(msg, fields...) }
