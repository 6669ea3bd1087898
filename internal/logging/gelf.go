package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/Graylog2/go-gelf/gelf"
)

// GelfWriter is the part of *gelf.Writer the handler needs.
type GelfWriter interface {
	WriteMessage(m *gelf.Message) error
}

var _ GelfWriter = (*gelf.Writer)(nil)

// GelfHandler sends records to Graylog as GELF messages. Attributes become
// additional fields; group names are joined with dots.
type GelfHandler struct {
	w        GelfWriter
	host     string
	facility string
	level    slog.Leveler
	extra    map[string]any
	prefix   string
}

// NewGelfHandler returns a handler writing records at or above level.
func NewGelfHandler(w GelfWriter, facility string, level slog.Leveler) *GelfHandler {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &GelfHandler{w: w, host: host, facility: facility, level: level, extra: map[string]any{}}
}

func (h *GelfHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *GelfHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]any, len(h.extra)+r.NumAttrs())
	for k, v := range h.extra {
		extra[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(extra, h.prefix, a)
		return true
	})

	return h.w.WriteMessage(&gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(r.Time.UnixNano()) / 1e9,
		Level:    syslogLevel(r.Level),
		Facility: h.facility,
		Extra:    extra,
	})
}

func (h *GelfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.extra = make(map[string]any, len(h.extra)+len(attrs))
	for k, v := range h.extra {
		clone.extra[k] = v
	}
	for _, a := range attrs {
		addAttr(clone.extra, h.prefix, a)
	}
	return &clone
}

func (h *GelfHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			addAttr(dst, groupPrefix, ga)
		}
		return
	}
	key := "_" + strings.ReplaceAll(prefix+a.Key, " ", "_")
	switch a.Value.Kind() {
	case slog.KindString:
		dst[key] = a.Value.String()
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindBool:
		dst[key] = a.Value.Any()
	default:
		dst[key] = a.Value.String()
	}
}

// syslogLevel maps slog levels to the syslog severities GELF uses.
func syslogLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return 3
	case l >= slog.LevelWarn:
		return 4
	case l >= slog.LevelInfo:
		return 6
	default:
		return 7
	}
}
