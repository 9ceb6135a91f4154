// Package log provides structured logging with verbosity levels for modlens.
// It wraps uber-go/zap and follows kubectl/klog patterns.
package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// LevelTrace sits one step below zap's Debug level.
const LevelTrace = zapcore.Level(-2)

// Verbosity values accepted by -v.
const (
	VerbosityError = iota // errors only
	VerbosityWarn         // parse failures, skipped files
	VerbosityInfo         // roots resolved, caches loaded, resyncs
	VerbosityDebug        // raw events, deliveries, cache mutations
	VerbosityTrace        // open retries, consolidation passes
)

// verbosityLevels is indexed by verbosity.
var verbosityLevels = [...]struct {
	level zapcore.Level
	name  string
}{
	VerbosityError: {zapcore.ErrorLevel, "error"},
	VerbosityWarn:  {zapcore.WarnLevel, "warn"},
	VerbosityInfo:  {zapcore.InfoLevel, "info"},
	VerbosityDebug: {zapcore.DebugLevel, "debug"},
	VerbosityTrace: {LevelTrace, "trace"},
}

// clampVerbosity folds out-of-range values onto the nearest end.
func clampVerbosity(v int) int {
	return min(max(v, VerbosityError), VerbosityTrace)
}

// VerbosityToLevel maps -v=N to a zap level. Values above trace are trace.
func VerbosityToLevel(v int) zapcore.Level {
	return verbosityLevels[clampVerbosity(v)].level
}

// LevelToVerbosity maps a zap level back to the smallest -v that enables it.
func LevelToVerbosity(l zapcore.Level) int {
	for v, e := range verbosityLevels {
		if l >= e.level {
			return v
		}
	}
	return VerbosityTrace
}

// LevelName returns the display name for a zap level, including trace.
func LevelName(l zapcore.Level) string {
	if l == LevelTrace {
		return "TRACE"
	}
	return l.CapitalString()
}

// VerbosityName returns the lower-case level name for -v=N.
func VerbosityName(v int) string {
	return verbosityLevels[clampVerbosity(v)].name
}

// VerbosityHelp lists the -v values for flag usage text.
func VerbosityHelp() string {
	parts := make([]string, len(verbosityLevels))
	for v, e := range verbosityLevels {
		parts[v] = fmt.Sprintf("%d=%s", v, e.name)
	}
	return "Verbosity level (" + strings.Join(parts, ", ") + ")"
}
