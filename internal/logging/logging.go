package logging

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

type Field struct {
	Key   string
	Value any
}

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Enabled(level Level) bool
}

type zapLogger struct {
	base  *zap.Logger
	level Level
}

func New(out io.Writer, level Level) Logger {
	if out == nil {
		out = os.Stdout
	}
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(out),
		zapLevel(level),
	)
	return &zapLogger{base: zap.New(core), level: level}
}

// FromZap adapts an existing zap logger.
func FromZap(base *zap.Logger, level Level) Logger {
	if base == nil {
		return Nop()
	}
	return &zapLogger{base: base, level: level}
}

func Nop() Logger {
	return &zapLogger{base: zap.NewNop(), level: Error}
}

func (l *zapLogger) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	return level >= l.level
}

func (l *zapLogger) With(fields ...Field) Logger {
	if l == nil {
		return Nop()
	}
	return &zapLogger{base: l.base.With(zapFields(fields)...), level: l.level}
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.log(Debug, msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.log(Info, msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.log(Warn, msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.log(Error, msg, fields...) }

func (l *zapLogger) log(level Level, msg string, fields ...Field) {
	if l == nil || level < l.level {
		return
	}
	if ce := l.base.Check(zapLevel(level), msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		switch v := field.Value.(type) {
		case error:
			out = append(out, zap.NamedError(field.Key, v))
		case time.Duration:
			out = append(out, zap.Duration(field.Key, v))
		default:
			out = append(out, zap.Any(field.Key, v))
		}
	}
	return out
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func ParseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func NewRequestID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf[:])
}

func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
