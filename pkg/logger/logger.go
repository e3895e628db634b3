package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the underlying zap core.
type Options struct {
	Level string
	JSON  bool
	// File enables a rotated file sink next to stdout when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger is the printf-style logger shared by every service.
type Logger struct {
	base  *zap.Logger
	info  func(template string, args ...interface{})
	warn  func(template string, args ...interface{})
	error func(template string, args ...interface{})
	debug func(template string, args ...interface{})
}

func New() *Logger {
	return NewWithOptions(Options{Level: "info"})
}

func NewWithOptions(opt Options) *Logger {
	var lvl zapcore.Level
	if err := lvl.Set(strings.ToLower(opt.Level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var enc zapcore.Encoder
	if opt.JSON {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.TimeKey = "ts"
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), lvl)}
	if opt.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opt.File,
			MaxSize:    max(1, opt.MaxSizeMB),
			MaxBackups: max(0, opt.MaxBackups),
			MaxAge:     max(0, opt.MaxAgeDays),
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotator), lvl))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return wrap(base)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return wrap(zap.NewNop())
}

func wrap(base *zap.Logger) *Logger {
	sugar := base.Sugar()
	return &Logger{
		base:  base,
		info:  sugar.Infof,
		warn:  sugar.Warnf,
		error: sugar.Errorf,
		debug: sugar.Debugf,
	}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return wrap(l.base.Sugar().With(keysAndValues...).Desugar())
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.info(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.warn(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.error(format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.debug(format, args...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.base.Sync()
}
