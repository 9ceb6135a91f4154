package log

import (
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger atomic.Pointer[zap.Logger]
	level  = zap.NewAtomicLevelAt(zapcore.WarnLevel)
)

func init() {
	// Warnings only until Init is called
	logger.Store(zap.New(NewCore(CoreOptions{
		Level:  level,
		Format: "text",
		Output: os.Stderr,
	})))
}

// Init initializes the global logger (call once at startup).
func Init(v int, format string) {
	InitWithOutput(v, format, os.Stderr)
}

// InitWithOutput is Init with an explicit sink. Tests use it to capture output.
func InitWithOutput(v int, format string, out io.Writer) {
	level.SetLevel(VerbosityToLevel(v))

	logger.Store(zap.New(NewCore(CoreOptions{
		Level:  level,
		Format: format,
		Output: out,
	})))
}

// SetVerbosity changes verbosity at runtime.
func SetVerbosity(v int) {
	level.SetLevel(VerbosityToLevel(v))
}

// Verbosity returns the current verbosity level, read back from the active
// zap level.
func Verbosity() int {
	return LevelToVerbosity(level.Level())
}

// Logger returns the current logger instance.
func Logger() *zap.Logger {
	return logger.Load()
}

// Error logs at error level (v=0).
func Error(msg string, keysAndValues ...any) {
	logger.Load().Sugar().Errorw(msg, keysAndValues...)
}

// Warn logs at warn level (v=1).
func Warn(msg string, keysAndValues ...any) {
	logger.Load().Sugar().Warnw(msg, keysAndValues...)
}

// Info logs at info level (v=2).
func Info(msg string, keysAndValues ...any) {
	logger.Load().Sugar().Infow(msg, keysAndValues...)
}

// Debug logs at debug level (v=3).
func Debug(msg string, keysAndValues ...any) {
	logger.Load().Sugar().Debugw(msg, keysAndValues...)
}

// Trace logs at trace level (v=4).
func Trace(msg string, keysAndValues ...any) {
	if ce := logger.Load().Check(LevelTrace, msg); ce != nil {
		ce.Write(fields(keysAndValues)...)
	}
}

// V returns a logger that only logs if verbosity >= level.
// Usage: log.V(3).Infow("detailed", "key", value)
func V(v int) *zap.SugaredLogger {
	if Verbosity() >= v {
		return logger.Load().Sugar()
	}
	return zap.NewNop().Sugar()
}

// With returns a logger with additional context.
func With(keysAndValues ...any) *zap.SugaredLogger {
	return logger.Load().Sugar().With(keysAndValues...)
}

// Component returns a logger tagged with component name.
func Component(name string) *zap.SugaredLogger {
	return logger.Load().Sugar().With("component", name)
}

// fields converts loose key/value pairs into zap fields. A trailing key
// without a value is kept under "!BADKEY", matching slog.
func fields(keysAndValues []any) []zap.Field {
	out := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok || i+1 >= len(keysAndValues) {
			out = append(out, zap.Any("!BADKEY", keysAndValues[i]))
			i--
			continue
		}
		out = append(out, zap.Any(key, keysAndValues[i+1]))
	}
	return out
}
