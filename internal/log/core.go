package log

import (
	"io"
	"os"

	"go.uber.org/zap/zapcore"
)

// CoreOptions configures the log core.
type CoreOptions struct {
	Level  zapcore.LevelEnabler
	Format string // "text" or "json"
	Output io.Writer
}

// NewCore creates the appropriate zap core based on options.
func NewCore(opts CoreOptions) zapcore.Core {
	if opts.Output == nil {
		opts.Output = os.Stderr // Always stderr, never stdout
	}
	if opts.Level == nil {
		opts.Level = zapcore.WarnLevel
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeLevelName,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var enc zapcore.Encoder
	if opts.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	return zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(opts.Output)), opts.Level)
}

// encodeLevelName customizes level display (TRACE, etc.).
func encodeLevelName(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(LevelName(l))
}
