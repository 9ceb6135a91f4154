package log

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		expected  zapcore.Level
	}{
		{0, zapcore.ErrorLevel},
		{-1, zapcore.ErrorLevel},
		{1, zapcore.WarnLevel},
		{2, zapcore.InfoLevel},
		{3, zapcore.DebugLevel},
		{4, LevelTrace},
		{5, LevelTrace}, // anything > 4 maps to trace
	}

	for _, tt := range tests {
		got := VerbosityToLevel(tt.verbosity)
		if got != tt.expected {
			t.Errorf("VerbosityToLevel(%d) = %v, want %v", tt.verbosity, got, tt.expected)
		}
	}
}

func TestLevelToVerbosity(t *testing.T) {
	tests := []struct {
		level    zapcore.Level
		expected int
	}{
		{zapcore.ErrorLevel, VerbosityError},
		{zapcore.WarnLevel, VerbosityWarn},
		{zapcore.InfoLevel, VerbosityInfo},
		{zapcore.DebugLevel, VerbosityDebug},
		{LevelTrace, VerbosityTrace},
	}

	for _, tt := range tests {
		got := LevelToVerbosity(tt.level)
		if got != tt.expected {
			t.Errorf("LevelToVerbosity(%v) = %d, want %d", tt.level, got, tt.expected)
		}
	}
}

func TestLevelName(t *testing.T) {
	tests := []struct {
		level    zapcore.Level
		expected string
	}{
		{LevelTrace, "TRACE"},
		{zapcore.DebugLevel, "DEBUG"},
		{zapcore.InfoLevel, "INFO"},
		{zapcore.WarnLevel, "WARN"},
		{zapcore.ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		got := LevelName(tt.level)
		if got != tt.expected {
			t.Errorf("LevelName(%v) = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestVerbosityName(t *testing.T) {
	tests := []struct {
		verbosity int
		expected  string
	}{
		{-3, "error"},
		{VerbosityWarn, "warn"},
		{VerbosityInfo, "info"},
		{VerbosityTrace, "trace"},
		{9, "trace"},
	}

	for _, tt := range tests {
		if got := VerbosityName(tt.verbosity); got != tt.expected {
			t.Errorf("VerbosityName(%d) = %q, want %q", tt.verbosity, got, tt.expected)
		}
	}
}

func TestVerbosityHelp(t *testing.T) {
	want := "Verbosity level (0=error, 1=warn, 2=info, 3=debug, 4=trace)"
	if got := VerbosityHelp(); got != want {
		t.Errorf("VerbosityHelp() = %q, want %q", got, want)
	}
}

func TestVerbosityFollowsLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(7, "text", &buf)
	if Verbosity() != VerbosityTrace {
		t.Errorf("Verbosity() = %d, want %d for -v above trace", Verbosity(), VerbosityTrace)
	}

	SetVerbosity(-1)
	if Verbosity() != VerbosityError {
		t.Errorf("Verbosity() = %d, want %d for negative -v", Verbosity(), VerbosityError)
	}
	Warn("suppressed")
	if strings.Contains(buf.String(), "suppressed") {
		t.Errorf("Warn should not log at v=0, got: %s", buf.String())
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(2, "text", &buf)

	if Verbosity() != 2 {
		t.Errorf("Verbosity() = %d, want 2", Verbosity())
	}

	Info("visible")
	Debug("hidden")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("Info should log at v=2, got: %s", buf.String())
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("Debug should not log at v=2, got: %s", buf.String())
	}
}

func TestSetVerbosity(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(1, "text", &buf)

	SetVerbosity(3)
	if Verbosity() != 3 {
		t.Errorf("Verbosity() = %d, want 3", Verbosity())
	}
	Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("Debug should log after SetVerbosity(3), got: %s", buf.String())
	}

	SetVerbosity(0)
	if Verbosity() != 0 {
		t.Errorf("Verbosity() = %d, want 0", Verbosity())
	}
}

func TestV(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(2, "text", &buf)

	// V(2) should log at info level (v=2)
	V(2).Infow("should appear", "key", "value")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("V(2) should log when verbosity is 2, got: %s", buf.String())
	}

	buf.Reset()

	// V(3) should not log when verbosity is 2
	V(3).Infow("should not appear", "key", "value")
	if strings.Contains(buf.String(), "should not appear") {
		t.Errorf("V(3) should not log when verbosity is 2, got: %s", buf.String())
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(2, "text", &buf)

	With("session", "abc").Infow("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("With() logger should log message, got: %s", output)
	}
	if !strings.Contains(output, "abc") {
		t.Errorf("With() logger should include context, got: %s", output)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(2, "text", &buf)

	Component("mycomponent").Infow("component message")

	output := buf.String()
	if !strings.Contains(output, "component") || !strings.Contains(output, "mycomponent") {
		t.Errorf("Component() should include component field, got: %s", output)
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(3, "text", &buf)

	Trace("too deep", "n", 1)
	if strings.Contains(buf.String(), "too deep") {
		t.Errorf("Trace should not log at v=3, got: %s", buf.String())
	}

	SetVerbosity(4)
	Trace("deep enough", "n", 1)
	if !strings.Contains(buf.String(), "TRACE") || !strings.Contains(buf.String(), "deep enough") {
		t.Errorf("Trace should log at v=4 with TRACE level, got: %s", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithOutput(2, "json", &buf)

	Info("json message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, `"msg":"json message"`) {
		t.Errorf("JSON output should contain msg field, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("JSON output should contain key field, got: %s", output)
	}
	if !strings.Contains(output, `"level":"INFO"`) {
		t.Errorf("JSON output should contain level field, got: %s", output)
	}
}

func TestFieldsOddArgs(t *testing.T) {
	got := fields([]any{"a", 1, "dangling"})
	if len(got) != 2 {
		t.Fatalf("fields() returned %d fields, want 2", len(got))
	}
	if got[0].Key != "a" || got[1].Key != "!BADKEY" {
		t.Errorf("fields() keys = %q, %q", got[0].Key, got[1].Key)
	}
}
