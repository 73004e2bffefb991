package reporting

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type captureSink struct {
	lines []string
}

func (c *captureSink) Log(format string, args ...any)   { c.record("log", format, args...) }
func (c *captureSink) Debug(format string, args ...any) { c.record("debug", format, args...) }
func (c *captureSink) Warn(format string, args ...any)  { c.record("warn", format, args...) }

func (c *captureSink) record(level, format string, args ...any) {
	c.lines = append(c.lines, level+": "+fmt.Sprintf(format, args...))
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestBufferFlushPreservesOrderAndLevels(t *testing.T) {
	buf := NewBuffer()
	buf.Warn("no root path given")
	buf.Log("resolved %d options", 3)
	buf.Debug("detail")

	sink := &captureSink{}
	buf.FlushTo(sink)

	want := []string{
		"warn: no root path given",
		"log: resolved 3 options",
		"debug: detail",
	}
	if len(sink.lines) != len(want) {
		t.Fatalf("flushed %d lines, want %d: %v", len(sink.lines), len(want), sink.lines)
	}
	for i := range want {
		if sink.lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, sink.lines[i], want[i])
		}
	}

	// A second flush must be a no-op.
	again := &captureSink{}
	buf.FlushTo(again)
	if len(again.lines) != 0 {
		t.Fatalf("second flush replayed %d lines", len(again.lines))
	}
}

func TestBufferNeverCrashesBeforeInit(t *testing.T) {
	buf := NewBuffer()
	buf.Log("message before any handler exists: %v", nil)
	buf.Warn("another")
}

func TestHandlerWritesHeartbeat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Heartbeat.log")
	h, err := NewHandler(newTestLogger(), Params{HeartbeatPath: path})
	if err != nil {
		t.Fatalf("NewHandler() err=%v", err)
	}
	h.Log("cross-experiment key: %s", "abc123")
	h.Warn("degraded")
	if err := h.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read heartbeat: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "session "+h.Session()) {
		t.Fatalf("heartbeat missing session header: %s", content)
	}
	if !strings.Contains(content, "cross-experiment key: abc123") {
		t.Fatalf("heartbeat missing log line: %s", content)
	}
	if !strings.Contains(content, "WARN") {
		t.Fatalf("heartbeat missing warn level: %s", content)
	}
}

func TestHandlerWithoutHeartbeat(t *testing.T) {
	h, err := NewHandler(newTestLogger(), Params{})
	if err != nil {
		t.Fatalf("NewHandler() err=%v", err)
	}
	h.Log("no heartbeat configured")
	if err := h.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
}

func TestHandlerFloatFormat(t *testing.T) {
	h, err := NewHandler(newTestLogger(), Params{FloatFormat: "%.2f"})
	if err != nil {
		t.Fatalf("NewHandler() err=%v", err)
	}
	if got := h.Float(1.23456); got != "1.23" {
		t.Fatalf("Float()=%q, want 1.23", got)
	}

	def, err := NewHandler(newTestLogger(), Params{})
	if err != nil {
		t.Fatalf("NewHandler() err=%v", err)
	}
	if got := def.Float(1.23456); got != "1.23456" {
		t.Fatalf("Float()=%q, want 1.23456", got)
	}
}
