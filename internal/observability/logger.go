package observability

import (
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes one JSON line per event. Call sites pass an event name and a
// flat field map, e.g. logger.Info("server_start", map[string]any{"addr": addr}).
// A nil *Logger discards everything.
type Logger struct {
	base *zap.Logger
}

func NewLogger(level string) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		parseLevel(level),
	)

	return &Logger{base: zap.New(core)}
}

// NewLoggerFromZap wraps an existing zap logger.
func NewLoggerFromZap(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{base: base}
}

func NewNopLogger() *Logger {
	return &Logger{base: zap.NewNop()}
}

func (l *Logger) Info(message string, fields map[string]any) {
	if l == nil {
		return
	}
	l.base.Info(message, toZapFields(fields)...)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	if l == nil {
		return
	}
	l.base.Warn(message, toZapFields(fields)...)
}

func (l *Logger) Error(message string, fields map[string]any) {
	if l == nil {
		return
	}
	l.base.Error(message, toZapFields(fields)...)
}

func (l *Logger) Sync() {
	if l == nil {
		return
	}
	_ = l.base.Sync()
}

func toZapFields(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
