package console

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/albertocavalcante/modlens/internal/workspace"
)

func TestReporter_Ready(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(Config{Writer: &buf})

	r.Ready([]workspace.Status{{Kind: "buildings", Root: "common/buildings", Entries: 12}}, "/games/hoi4", "/mods/mine")

	output := buf.String()
	for _, want := range []string{"/games/hoi4", "/mods/mine", "buildings", "12 files", "ready"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output: %s", want, output)
		}
	}
}

func TestReporter_Ready_NoMod(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(Config{Writer: &buf})

	r.Ready(nil, "/games/hoi4", "")

	if strings.Contains(buf.String(), "mod ") {
		t.Errorf("unexpected mod line: %s", buf.String())
	}
}

func TestReporter_Changed(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(Config{Writer: &buf, NoColor: true})

	r.Changed("buildings", "/mods/mine/common/buildings/00.txt", ChangeModified)
	r.Changed("buildings", "/mods/mine/common/buildings/01.txt", ChangeDeleted)

	output := buf.String()
	if !strings.Contains(output, "~ buildings /mods/mine/common/buildings/00.txt") {
		t.Errorf("expected modified line: %s", output)
	}
	if !strings.Contains(output, "- buildings /mods/mine/common/buildings/01.txt") {
		t.Errorf("expected deleted line: %s", output)
	}
	if r.Stats().ChangeCount != 2 {
		t.Errorf("expected change count 2, got %d", r.Stats().ChangeCount)
	}
}

func TestReporter_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(Config{Writer: &buf, JSON: true})

	r.Changed("ideologies", "/x/common/ideologies/a.txt", ChangeModified)
	r.Error(errors.New("boom"))
	r.Shutdown()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 JSON lines, got %d: %s", len(lines), buf.String())
	}

	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if ev["event"] != "resource_changed" || ev["kind"] != "ideologies" || ev["change"] != "~" {
		t.Errorf("unexpected event: %v", ev)
	}

	if err := json.Unmarshal([]byte(lines[2]), &ev); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if ev["event"] != "shutdown" || ev["changes"] != float64(1) || ev["errors"] != float64(1) {
		t.Errorf("unexpected shutdown event: %v", ev)
	}
}

func TestReporter_Shutdown(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(Config{Writer: &buf})

	r.Error(errors.New("boom"))
	r.Shutdown()

	output := buf.String()
	if !strings.Contains(output, "error: boom") {
		t.Errorf("expected error line: %s", output)
	}
	if !strings.Contains(output, "0 changes, 1 errors") {
		t.Errorf("expected stats in output: %s", output)
	}
}

func TestReporter_Colorize(t *testing.T) {
	r := &Reporter{isTTY: true}
	if got := r.colorize("~", ChangeModified); got != "\033[33m~\033[0m" {
		t.Errorf("colorize() = %q", got)
	}
	r.noColor = true
	if got := r.colorize("~", ChangeModified); got != "~" {
		t.Errorf("colorize() with noColor = %q", got)
	}
}
