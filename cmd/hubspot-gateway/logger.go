// ABOUTME: slog setup for the CLI: JSON for machines, a one-line console format otherwise
// ABOUTME: Both formats blank attributes whose key names a credential before they are written

package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/hubspot-gateway/internal/config"
	"github.com/2389/hubspot-gateway/internal/credential"
)

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// redactAttr replaces string values stored under credential-looking keys.
// Credential values already render redacted through their LogValue.
func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindGroup && credential.IsSensitiveKey(a.Key) {
		return slog.String(a.Key, credential.Redacted)
	}
	return a
}

// setupLogger writes to out so stdio mode can keep stdout for MCP frames.
func setupLogger(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				return redactAttr(a)
			},
		}))
	}
	return slog.New(&consoleHandler{sink: &consoleSink{out: out}, level: level})
}

var levelTags = []struct {
	min   slog.Level
	tag   string
	paint *color.Color
}{
	{slog.LevelError, "ERR", color.New(color.FgRed, color.Bold)},
	{slog.LevelWarn, "WRN", color.New(color.FgYellow)},
	{slog.LevelInfo, "INF", color.New(color.FgCyan)},
	{slog.LevelDebug, "DBG", color.New(color.FgMagenta)},
}

func levelTag(l slog.Level) string {
	for _, t := range levelTags {
		if l >= t.min {
			return t.paint.Sprint(t.tag)
		}
	}
	return "???"
}

type consoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

// consoleHandler prints "15:04:05 LVL message key=value ...". Attributes bound with
// With are rendered once into preset; derived handlers share the sink.
type consoleHandler struct {
	sink   *consoleSink
	level  slog.Level
	preset string
	group  string
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(color.HiBlackString(r.Time.Format("15:04:05")))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.WriteString(h.preset)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	_, err := io.WriteString(h.sink.out, b.String())
	return err
}

// appendAttr flattens groups into dotted keys and applies redaction to each leaf.
func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, inner, ga)
		}
		return
	}
	a = redactAttr(a)
	b.WriteString(color.HiBlackString(" " + prefix + a.Key + "="))
	b.WriteString(a.Value.String())
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	b.WriteString(h.preset)
	for _, a := range attrs {
		appendAttr(&b, h.group, a)
	}
	next := *h
	next.preset = b.String()
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group += name + "."
	return &next
}
