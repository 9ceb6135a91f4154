// Package console formats watch-mode output for terminals and tooling.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/albertocavalcante/modlens/internal/workspace"
)

// ChangeType represents the type of resource change.
type ChangeType string

const (
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

// Reporter handles watch mode output formatting.
type Reporter struct {
	writer  io.Writer
	isTTY   bool
	noColor bool
	jsonOut bool

	mu    sync.Mutex
	stats Stats
}

// Stats tracks statistics for the watch session.
type Stats struct {
	ChangeCount int
	ErrorCount  int
	StartTime   time.Time
}

// Config configures the reporter.
type Config struct {
	Writer  io.Writer
	NoColor bool
	JSON    bool
}

// NewReporter creates a new reporter with the given configuration.
func NewReporter(cfg Config) *Reporter {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	isTTY := false
	if f, ok := writer.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	return &Reporter{
		writer:  writer,
		isTTY:   isTTY,
		noColor: cfg.NoColor,
		jsonOut: cfg.JSON,
		stats: Stats{
			StartTime: time.Now(),
		},
	}
}

// Ready reports the loaded caches.
func (r *Reporter) Ready(status []workspace.Status, game, mod string) {
	if r.jsonOut {
		r.writeJSON(map[string]any{
			"event":     "ready",
			"game":      game,
			"mod":       mod,
			"resources": status,
		})
		return
	}

	r.printf("modlens: game %s\n", game)
	if mod != "" {
		r.printf("modlens: mod  %s\n", mod)
	}
	for _, s := range status {
		r.printf("modlens: %-18s %5d files  (%s)\n", s.Kind, s.Entries, s.Root)
	}
	r.println("modlens: ready")
	r.println()
}

// Changed reports one resource change.
func (r *Reporter) Changed(kind, path string, change ChangeType) {
	r.mu.Lock()
	r.stats.ChangeCount++
	r.mu.Unlock()

	if r.jsonOut {
		r.writeJSON(map[string]any{
			"event":  "resource_changed",
			"kind":   kind,
			"path":   path,
			"change": string(change),
			"time":   time.Now().Format(time.RFC3339),
		})
		return
	}

	r.printf("[%s] %s %s %s\n", r.timestamp(), r.colorize(string(change), change), kind, path)
}

// Error reports an error.
func (r *Reporter) Error(err error) {
	r.mu.Lock()
	r.stats.ErrorCount++
	r.mu.Unlock()

	if r.jsonOut {
		r.writeJSON(map[string]any{
			"event": "error",
			"error": err.Error(),
			"time":  time.Now().Format(time.RFC3339),
		})
		return
	}

	xmark := r.colorize("✗", ChangeDeleted)
	r.printf("[%s] %s error: %v\n", r.timestamp(), xmark, err)
}

// Shutdown reports the end of the session with statistics.
func (r *Reporter) Shutdown() {
	stats := r.Stats()

	if r.jsonOut {
		r.writeJSON(map[string]any{
			"event":    "shutdown",
			"changes":  stats.ChangeCount,
			"errors":   stats.ErrorCount,
			"duration": time.Since(stats.StartTime).String(),
		})
		return
	}

	r.println()
	r.printf("modlens: shutting down (%d changes, %d errors)\n",
		stats.ChangeCount, stats.ErrorCount)
}

// Stats returns the current session statistics.
func (r *Reporter) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Reporter) timestamp() string {
	return time.Now().Format("15:04:05")
}

// colorize applies ANSI color codes based on change type.
func (r *Reporter) colorize(s string, change ChangeType) string {
	if r.noColor || !r.isTTY {
		return s
	}

	var color string
	switch change {
	case ChangeModified:
		color = "\033[33m" // yellow
	case ChangeDeleted:
		color = "\033[31m" // red
	default:
		return s
	}
	return color + s + "\033[0m"
}

func (r *Reporter) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		r.println(`{"event":"internal_error","error":"json marshal failed"}`)
		return
	}
	r.println(string(data))
}

// printf writes to the writer. Output errors are ignored.
func (r *Reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.writer, format, args...)
}

func (r *Reporter) println(args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.writer, args...)
}
