package sink

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// ErrSyslogUnsupported is returned where the platform has no system log.
var ErrSyslogUnsupported = errors.New("system log is not supported on this platform")

// syslogWriter is the subset of *syslog.Writer used here.
type syslogWriter interface {
	Info(m string) error
	Warning(m string) error
	Err(m string) error
	Debug(m string) error
	Close() error
}

// SyslogSink writes one informational syslog entry per line.
type SyslogSink struct {
	w syslogWriter
}

func (s *SyslogSink) AppendLine(line string) error {
	return s.w.Info(line)
}

// Flush is a no-op; the system log handles its own durability.
func (s *SyslogSink) Flush() error { return nil }

func (s *SyslogSink) Close() error { return s.w.Close() }

// Handler returns a slog.Handler that writes diagnostics to the same
// system log connection, mapping record levels to syslog severities.
func (s *SyslogSink) Handler(level slog.Leveler) slog.Handler {
	return NewSyslogHandler(s.w, level)
}

// syslogState is shared by a handler and the handlers derived from it.
type syslogState struct {
	mu  sync.Mutex
	buf bytes.Buffer
	w   syslogWriter
}

// SyslogHandler formats records as "msg key=value ..." and writes them
// with the severity matching their level.
type SyslogHandler struct {
	state *syslogState
	inner slog.Handler
}

// NewSyslogHandler returns a handler writing to w at or above level.
func NewSyslogHandler(w syslogWriter, level slog.Leveler) *SyslogHandler {
	st := &syslogState{w: w}
	inner := slog.NewTextHandler(&st.buf, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// syslog stamps time and severity itself.
			if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
				return slog.Attr{}
			}
			return a
		},
	})
	return &SyslogHandler{state: st, inner: inner}
}

func (h *SyslogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *SyslogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	h.state.buf.Reset()
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	msg := strings.TrimSuffix(h.state.buf.String(), "\n")

	switch {
	case r.Level >= slog.LevelError:
		return h.state.w.Err(msg)
	case r.Level >= slog.LevelWarn:
		return h.state.w.Warning(msg)
	case r.Level >= slog.LevelInfo:
		return h.state.w.Info(msg)
	default:
		return h.state.w.Debug(msg)
	}
}

func (h *SyslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SyslogHandler{state: h.state, inner: h.inner.WithAttrs(attrs)}
}

func (h *SyslogHandler) WithGroup(name string) slog.Handler {
	return &SyslogHandler{state: h.state, inner: h.inner.WithGroup(name)}
}
