package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaxVerbosity is the highest accepted verbosity level.
const MaxVerbosity = 2

// leveled console logger with a verbosity gate for extra diagnostics
type Logger struct {
	*zap.SugaredLogger
	verbosity int
}

// creates a console logger writing to stderr. verbosity 0 logs info and
// above, anything higher also enables debug output
func NewLogger(verbosity int) *Logger {
	return newLogger(verbosity, zapcore.Lock(os.Stderr))
}

// NewLoggerTo is NewLogger writing to w instead of stderr.
func NewLoggerTo(verbosity int, w io.Writer) *Logger {
	return newLogger(verbosity, zapcore.AddSync(w))
}

func newLogger(verbosity int, sink zapcore.WriteSyncer) *Logger {
	verbosity = clamp(verbosity)

	level := zapcore.InfoLevel
	if verbosity > 0 {
		level = zapcore.DebugLevel
	}

	encCfg := zapcore.EncoderConfig{
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	if verbosity >= MaxVerbosity {
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, level)
	return &Logger{
		SugaredLogger: zap.New(core).Sugar(),
		verbosity:     verbosity,
	}
}

// logger that discards everything
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// reports whether diagnostics at the given verbosity level should be emitted
func (l *Logger) V(level int) bool {
	if l == nil {
		return false
	}
	return l.verbosity >= level
}

func (l *Logger) Verbosity() int {
	if l == nil {
		return 0
	}
	return l.verbosity
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxVerbosity {
		return MaxVerbosity
	}
	return v
}
