package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SlogHandler bridges log/slog records into a Logger so that libraries
// logging through slog share the gateway's log output. Attributes are
// rendered as trailing key=value pairs.
type SlogHandler struct {
	log    *Logger
	prefix string
	attrs  []slog.Attr
}

// NewSlogHandler returns a handler forwarding to l, or nil when l is nil.
func NewSlogHandler(l *Logger) *SlogHandler {
	if l == nil {
		return nil
	}
	return &SlogHandler{log: l}
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return levelFromSlog(level) >= h.log.GetLevel()
}

func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	b.WriteString(record.Message)
	for _, attr := range h.attrs {
		writeAttr(&b, h.prefix, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, h.prefix, attr)
		return true
	})

	msg := b.String()
	switch levelFromSlog(record.Level) {
	case LevelError:
		h.log.Error("%s", msg)
	case LevelWarn:
		h.log.Warn("%s", msg)
	case LevelInfo:
		h.log.Info("%s", msg)
	default:
		h.log.Debug("%s", msg)
	}
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	combined = append(combined, h.attrs...)
	combined = append(combined, attrs...)
	return &SlogHandler{log: h.log, prefix: h.prefix, attrs: combined}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	prefix := name
	if h.prefix != "" {
		prefix = h.prefix + "." + name
	}
	return &SlogHandler{log: h.log, prefix: prefix, attrs: h.attrs}
}

func writeAttr(b *strings.Builder, prefix string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, nested := range attr.Value.Group() {
			writeAttr(b, key, nested)
		}
		return
	}
	fmt.Fprintf(b, " %s=%v", key, attr.Value)
}

func levelFromSlog(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}
