package logging

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// journalIdentifier tags every entry so `journalctl -t zoomrelay` finds them.
const journalIdentifier = "zoomrelay"

// JournalHandler is a slog.Handler that sends records to the systemd journal.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewJournalHandler creates a new journal handler.
// The level is consulted on every record so a *slog.LevelVar can be changed at runtime.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the record to the journal.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := mapLevelToPriority(r.Level)
	return journal.Send(r.Message, priority, h.fields(r))
}

func (h *JournalHandler) fields(r slog.Record) map[string]string {
	fields := map[string]string{
		"SYSLOG_IDENTIFIER": journalIdentifier,
	}
	for _, attr := range h.attrs {
		addAttrToFields(fields, attr, h.groups)
	}
	r.Attrs(func(attr slog.Attr) bool {
		addAttrToFields(fields, attr, h.groups)
		return true
	})
	return fields
}

// WithAttrs returns a new handler with additional attributes.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JournalHandler{
		level:  h.level,
		attrs:  append(slices.Clip(h.attrs), attrs...),
		groups: h.groups,
	}
}

// WithGroup returns a new handler with a group prefix.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: append(slices.Clip(h.groups), name),
	}
}

// mapLevelToPriority maps slog levels to journal priorities.
func mapLevelToPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// fieldName turns an attribute path into a valid journal field name:
// uppercase ASCII letters, digits and underscores, not starting with '_'.
func fieldName(groups []string, key string) string {
	full := key
	if len(groups) > 0 {
		full = strings.Join(groups, "_") + "_" + key
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(full) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "_")
}

// addAttrToFields adds an slog attribute to journal fields.
func addAttrToFields(fields map[string]string, attr slog.Attr, groups []string) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindGroup {
		nested := groups
		if attr.Key != "" {
			nested = append(slices.Clip(groups), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			addAttrToFields(fields, a, nested)
		}
		return
	}

	key := fieldName(groups, attr.Key)
	if key == "" {
		return
	}

	switch attr.Value.Kind() {
	case slog.KindInt64:
		fields[key] = strconv.FormatInt(attr.Value.Int64(), 10)
	case slog.KindUint64:
		fields[key] = strconv.FormatUint(attr.Value.Uint64(), 10)
	case slog.KindFloat64:
		fields[key] = strconv.FormatFloat(attr.Value.Float64(), 'f', -1, 64)
	case slog.KindTime:
		fields[key] = attr.Value.Time().Format(time.RFC3339Nano)
	default:
		fields[key] = attr.Value.String()
	}
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
