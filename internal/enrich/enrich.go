// Package enrich derives a source label from prefixed log lines.
//
// Multiplexed output such as docker compose prints each line as
// "<service>  | <message>". Entry recognizes that prefix, records the service as
// the entry's source and keeps the remainder as its message. Entries that
// already carry a source, or that have no prefix, are returned unchanged, so
// applying Entry twice is the same as applying it once.
package enrich

import (
	"regexp"

	"github.com/charmbracelet/x/ansi"

	"github.com/five82/perch/internal/logapi"
)

// prefixRe matches "web-1  | GET /health 200" and "worker.2 | ...".
var prefixRe = regexp.MustCompile(`^([A-Za-z0-9_-]+(?:\.\d+)?)\s*\|\s?(.*)$`)

// Entry returns entry with Parsed.Source and Parsed.Message filled from a
// "source | message" prefix. Raw is never modified and the input's ParsedLog is
// never written to.
func Entry(entry logapi.LogEntry) logapi.LogEntry {
	if entry.Parsed != nil && entry.Parsed.Source != "" {
		return entry
	}
	source, message, ok := SplitPrefix(entry.Raw)
	if !ok {
		return entry
	}

	var parsed logapi.ParsedLog
	if entry.Parsed != nil {
		parsed = *entry.Parsed
	}
	parsed.Source = source
	parsed.Message = message
	entry.Parsed = &parsed
	return entry
}

// All enriches every entry and returns a new slice.
func All(entries []logapi.LogEntry) []logapi.LogEntry {
	out := make([]logapi.LogEntry, len(entries))
	for i, entry := range entries {
		out[i] = Entry(entry)
	}
	return out
}

// SplitPrefix strips ANSI escapes from raw and splits a "source | message" line.
func SplitPrefix(raw string) (source, message string, ok bool) {
	m := prefixRe.FindStringSubmatch(ansi.Strip(raw))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
