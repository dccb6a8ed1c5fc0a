// Package testutil provides shared test helpers for model files, loggers and
// polling assertions.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

// QuietLogger returns a logger that discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// WriteModelFile writes an aircraft model file with one "P key value" line per
// entry, followed by the property terminator and filler lines.
func WriteModelFile(t *testing.T, dir, name string, values map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("I\n1100 Version\nACF\n")
	for _, k := range keys {
		b.WriteString("P " + k + " " + values[k] + "\n")
	}
	b.WriteString("PROPERTIES_END\n")
	b.WriteString("P acf/_callsign SHOULD_NOT_BE_READ\n")

	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
