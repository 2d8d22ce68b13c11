package logger

import (
	"context"
	"log/slog"
	"regexp"
)

// redactedKeys are attribute keys whose values are replaced outright,
// regardless of shape, because the key name alone identifies them as
// sensitive.
var redactedKeys = map[string]struct{}{
	"email":       {},
	"password":    {},
	"ssn":         {},
	"cc":          {},
	"credit_card": {},
	"api_key":     {},
	"token":       {},
	"secret":      {},
}

var (
	emailPattern      = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	creditCardPattern = regexp.MustCompile(`^[\d]{4}[\s-]?[\d]{4}[\s-]?[\d]{4}[\s-]?[\d]{4}$`)
)

const redactedPlaceholder = "[REDACTED]"

// RedactHandler scrubs attribute values that look like PII before handing
// the record to the next handler. It checks both the attribute key (an
// explicit denylist) and the value's shape (email and credit-card-number
// patterns), since callers don't reliably name sensitive fields.
type RedactHandler struct {
	next slog.Handler
}

func NewRedactHandler(next slog.Handler) *RedactHandler {
	return &RedactHandler{next: next}
}

func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func redactAttr(a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[a.Key]; ok {
		return slog.String(a.Key, redactedPlaceholder)
	}
	if a.Value.Kind() == slog.KindString {
		v := a.Value.String()
		if emailPattern.MatchString(v) || creditCardPattern.MatchString(v) {
			return slog.String(a.Key, redactedPlaceholder)
		}
	}
	return a
}

func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactHandler{next: h.next.WithAttrs(redacted)}
}

func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{next: h.next.WithGroup(name)}
}
