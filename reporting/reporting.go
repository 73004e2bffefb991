// Package reporting provides the leveled sink consumed by environment
// resolution. Until a real handler is installed, calls are collected by a
// Buffer so early warnings are never lost and never crash.
package reporting

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink accepts Printf-style leveled messages.
type Sink interface {
	Log(format string, args ...any)
	Debug(format string, args ...any)
	Warn(format string, args ...any)
}

type entry struct {
	level slog.Level
	msg   string
}

// Buffer is a Sink that records entries until a real handler exists.
type Buffer struct {
	mu      sync.Mutex
	entries []entry
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Log(format string, args ...any) {
	b.append(slog.LevelInfo, format, args...)
}

func (b *Buffer) Debug(format string, args ...any) {
	b.append(slog.LevelDebug, format, args...)
}

func (b *Buffer) Warn(format string, args ...any) {
	b.append(slog.LevelWarn, format, args...)
}

func (b *Buffer) append(level slog.Level, format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry{level: level, msg: fmt.Sprintf(format, args...)})
}

// FlushTo replays the buffered entries, in order, into sink and empties the
// buffer.
func (b *Buffer) FlushTo(sink Sink) {
	b.mu.Lock()
	drained := b.entries
	b.entries = nil
	b.mu.Unlock()

	for _, e := range drained {
		switch e.level {
		case slog.LevelDebug:
			sink.Debug("%s", e.msg)
		case slog.LevelWarn:
			sink.Warn("%s", e.msg)
		default:
			sink.Log("%s", e.msg)
		}
	}
}

// Params configures a Handler.
type Params struct {
	// HeartbeatPath, when set, receives a copy of every emitted line. The
	// parent directory is created if absent.
	HeartbeatPath string
	// FloatFormat is the Printf verb used by Float. Defaults to "%.5f".
	FloatFormat string
}

// Handler is the real reporting sink: structured logging via slog plus an
// optional append-only heartbeat file stamped with a per-session id.
type Handler struct {
	logger      *slog.Logger
	floatFormat string
	session     string

	mu        sync.Mutex
	heartbeat *os.File
}

func NewHandler(logger *slog.Logger, params Params) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if params.FloatFormat == "" {
		params.FloatFormat = "%.5f"
	}

	h := &Handler{
		logger:      logger,
		floatFormat: params.FloatFormat,
		session:     uuid.NewString(),
	}

	if params.HeartbeatPath != "" {
		if err := os.MkdirAll(filepath.Dir(params.HeartbeatPath), 0o755); err != nil {
			return nil, fmt.Errorf("create heartbeat dir: %w", err)
		}
		f, err := os.OpenFile(params.HeartbeatPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open heartbeat: %w", err)
		}
		h.heartbeat = f
		h.beat(slog.LevelInfo, fmt.Sprintf("session %s started", h.session))
	}
	return h, nil
}

func (h *Handler) Log(format string, args ...any) {
	h.emit(slog.LevelInfo, format, args...)
}

func (h *Handler) Debug(format string, args ...any) {
	h.emit(slog.LevelDebug, format, args...)
}

func (h *Handler) Warn(format string, args ...any) {
	h.emit(slog.LevelWarn, format, args...)
}

// Session returns the id written to the heartbeat header.
func (h *Handler) Session() string {
	return h.session
}

// Float renders v with the configured float format.
func (h *Handler) Float(v float64) string {
	return fmt.Sprintf(h.floatFormat, v)
}

func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.heartbeat == nil {
		return nil
	}
	err := h.heartbeat.Close()
	h.heartbeat = nil
	return err
}

func (h *Handler) emit(level slog.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case slog.LevelDebug:
		h.logger.Debug(msg)
	case slog.LevelWarn:
		h.logger.Warn(msg)
	default:
		h.logger.Info(msg)
	}
	h.beat(level, msg)
}

func (h *Handler) beat(level slog.Level, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.heartbeat == nil {
		return
	}
	line := fmt.Sprintf("%s %-5s %s\n", time.Now().UTC().Format(time.RFC3339), level.String(), msg)
	_, _ = h.heartbeat.WriteString(line)
}
