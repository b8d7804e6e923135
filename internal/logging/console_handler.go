package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders records as single human-readable lines. Attributes
// appear after the message as key=value pairs with the component, when
// present, promoted into a bracketed prefix.
type consoleHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	level *slog.LevelVar
	attrs []slog.Attr
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar) slog.Handler {
	return &consoleHandler{
		mu:    &sync.Mutex{},
		out:   w,
		level: lvl,
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	component := ""
	pairs := make([]string, 0, record.NumAttrs()+len(h.attrs))

	collect := func(attr slog.Attr) bool {
		if attr.Key == FieldComponent {
			component = attr.Value.String()
			return true
		}
		if attr.Equal(slog.Attr{}) {
			return true
		}
		pairs = append(pairs, attr.Key+"="+formatValue(attr.Value))
		return true
	}
	for _, attr := range h.attrs {
		collect(attr)
	}
	record.Attrs(collect)
	sort.Strings(pairs)

	var b strings.Builder
	b.WriteString(record.Time.Format(time.DateTime))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%-5s", levelLabel(record.Level)))
	if component != "" {
		b.WriteString(" [")
		b.WriteString(component)
		b.WriteByte(']')
	}
	b.WriteByte(' ')
	b.WriteString(record.Message)
	for _, pair := range pairs {
		b.WriteByte(' ')
		b.WriteString(pair)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	combined = append(combined, h.attrs...)
	combined = append(combined, attrs...)
	return &consoleHandler{mu: h.mu, out: h.out, level: h.level, attrs: combined}
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	// Groups are flattened in console output.
	return h
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t") {
			return fmt.Sprintf("%q", s)
		}
		return s
	default:
		s := v.String()
		if strings.ContainsAny(s, " \t") {
			return fmt.Sprintf("%q", s)
		}
		return s
	}
}
