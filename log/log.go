/*
	Copyright 2024 Markus Papenbrock
*/

// Package log provides a thin wrapper around zap with a package level
// default logger. Components either use the default logger or get a
// named child via GetLoggerManager/Named.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

type Field = zap.Field

// field helpers, so callers don't need to import zap themselves
var (
	Skip          = zap.Skip
	Binary        = zap.Binary
	Bool          = zap.Bool
	Duration      = zap.Duration
	Float64       = zap.Float64
	Float32       = zap.Float32
	Int           = zap.Int
	Int32         = zap.Int32
	Int64         = zap.Int64
	Uint          = zap.Uint
	Uint8         = zap.Uint8
	Uint32        = zap.Uint32
	Uint64        = zap.Uint64
	String        = zap.String
	Stringer      = zap.Stringer
	Time          = zap.Time
	Any           = zap.Any
	ErrorField    = zap.Error
	NamedError    = zap.NamedError
	WithCaller    = zap.WithCaller
	AddCallerSkip = zap.AddCallerSkip
)

type Logger struct {
	l     *zap.Logger
	level Level
}

func (l *Logger) Debug(msg string, fields ...Field) { l.l.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.l.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.l.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.l.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.l.Fatal(msg, fields...) }

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) WithOptions(opts ...zap.Option) *Logger {
	return &Logger{l: l.l.WithOptions(opts...), level: l.level}
}

func (l *Logger) Sugar() *zap.SugaredLogger { return l.l.Sugar() }

func (l *Logger) Level() Level { return l.level }

func (l *Logger) DebugEnabled() bool { return l.level <= DebugLevel }

func (l *Logger) Sync() error { return l.l.Sync() }

func ParseLevel(text string) (Level, error) {
	return zapcore.ParseLevel(text)
}

// New creates a production style logger (JSON encoding) writing to w.
func New(w io.Writer, level Level, opts ...zap.Option) *Logger {
	return newLogger(w, level, zapcore.NewJSONEncoder(prodEncoderConfig()), opts...)
}

// DevLogger creates a console style logger for interactive use.
func DevLogger(w io.Writer, level Level, opts ...zap.Option) *Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return newLogger(w, level, zapcore.NewConsoleEncoder(cfg), opts...)
}

// ApplyFilters constrains the logger with zapfilter rules, keeping
// per-component levels adjustable without a rebuild (e.g.
// "debug:lap,session info:*"). Empty rules return the logger unchanged.
func (l *Logger) ApplyFilters(rules string) (*Logger, error) {
	if rules == "" {
		return l, nil
	}
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, err
	}
	filtered := l.l.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapfilter.NewFilteringCore(core, filter)
	}))
	return &Logger{l: filtered, level: l.level}, nil
}

func newLogger(w io.Writer, level Level, enc zapcore.Encoder, opts ...zap.Option) *Logger {
	if w == nil {
		w = os.Stderr
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return &Logger{l: zap.New(core, opts...), level: level}
}

func prodEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

var std = DevLogger(os.Stderr, InfoLevel)

func Default() *Logger { return std }

// ResetDefault replaces the package level default logger.
func ResetDefault(l *Logger) {
	std = l
}

func GetLevel() Level { return std.level }

func Debug(msg string, fields ...Field) { std.l.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { std.l.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { std.l.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { std.l.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { std.l.Fatal(msg, fields...) }

func Sync() error { return std.Sync() }
