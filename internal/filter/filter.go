// Package filter describes log filters and splits them between the server and
// the client.
//
// Sources are always evaluated locally against retained entries; every other
// predicate is forwarded to the snapshot and stream endpoints. The split is a
// fixed policy, not a per-call option.
package filter

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/five82/perch/internal/logapi"
)

// Levels lists the severities the server normalizes to, lowest first.
var Levels = []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// Filter is the full user-facing filter.
type Filter struct {
	Search  string
	Regex   bool
	Levels  []string
	Sources []string
	AfterID uint64
	Limit   int
}

// Server returns the half of the filter that crosses the wire.
func (f Filter) Server() logapi.Filter {
	return logapi.Filter{
		Search:  f.Search,
		Levels:  normalizeSet(f.Levels, strings.ToUpper),
		Regex:   f.Regex,
		AfterID: f.AfterID,
		Limit:   f.Limit,
	}
}

// Client returns the predicate evaluated against retained entries.
func (f Filter) Client() SourcePredicate {
	return NewSourcePredicate(f.Sources)
}

// Split partitions the filter into its server and client halves.
func (f Filter) Split() (logapi.Filter, SourcePredicate) {
	return f.Server(), f.Client()
}

// ServerEqual reports whether f and other send the same filter to the server.
// Limit is excluded because the engine always overrides it.
func (f Filter) ServerEqual(other Filter) bool {
	a, b := f.Server(), other.Server()
	return a.Search == b.Search &&
		a.Regex == b.Regex &&
		a.AfterID == b.AfterID &&
		slices.Equal(a.Levels, b.Levels)
}

// Equal reports whether both halves match.
func (f Filter) Equal(other Filter) bool {
	return f.ServerEqual(other) &&
		slices.Equal(normalizeSet(f.Sources, nil), normalizeSet(other.Sources, nil))
}

// HasLevel reports whether level is selected (case-insensitive).
func (f Filter) HasLevel(level string) bool {
	for _, l := range f.Levels {
		if strings.EqualFold(strings.TrimSpace(l), level) {
			return true
		}
	}
	return false
}

// ToggleLevel returns a copy with level added or removed.
func (f Filter) ToggleLevel(level string) Filter {
	level = strings.ToUpper(strings.TrimSpace(level))
	out := f.clone()
	if f.HasLevel(level) {
		out.Levels = slices.DeleteFunc(out.Levels, func(l string) bool {
			return strings.EqualFold(strings.TrimSpace(l), level)
		})
		return out
	}
	out.Levels = append(out.Levels, level)
	return out
}

// WithSources returns a copy restricted to sources; nil clears the restriction.
func (f Filter) WithSources(sources ...string) Filter {
	out := f.clone()
	out.Sources = normalizeSet(sources, nil)
	return out
}

// Active reports whether any predicate is set.
func (f Filter) Active() bool {
	return strings.TrimSpace(f.Search) != "" ||
		len(normalizeSet(f.Levels, nil)) > 0 ||
		len(normalizeSet(f.Sources, nil)) > 0 ||
		f.AfterID > 0
}

// Summary renders the filter for status lines, e.g. `/tim(e|out)/ level=ERROR,WARN src=web-1`.
func (f Filter) Summary() string {
	var parts []string
	if search := strings.TrimSpace(f.Search); search != "" {
		if f.Regex {
			parts = append(parts, "/"+search+"/")
		} else {
			parts = append(parts, fmt.Sprintf("%q", search))
		}
	}
	if levels := normalizeSet(f.Levels, strings.ToUpper); len(levels) > 0 {
		parts = append(parts, "level="+strings.Join(levels, ","))
	}
	if sources := normalizeSet(f.Sources, nil); len(sources) > 0 {
		parts = append(parts, "src="+strings.Join(sources, ","))
	}
	if f.AfterID > 0 {
		parts = append(parts, fmt.Sprintf("after=%d", f.AfterID))
	}
	return strings.Join(parts, " ")
}

func (f Filter) clone() Filter {
	out := f
	out.Levels = slices.Clone(f.Levels)
	out.Sources = slices.Clone(f.Sources)
	return out
}

// SourcePredicate is the client-side source-set membership test.
type SourcePredicate struct {
	set map[string]struct{}
}

// NewSourcePredicate builds a predicate for sources. Blank names are ignored.
func NewSourcePredicate(sources []string) SourcePredicate {
	p := SourcePredicate{}
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if p.set == nil {
			p.set = make(map[string]struct{}, len(sources))
		}
		p.set[s] = struct{}{}
	}
	return p
}

// Empty reports whether the predicate matches everything.
func (p SourcePredicate) Empty() bool {
	return len(p.set) == 0
}

// Match reports whether entry passes. An empty set matches every entry; a
// non-empty set never matches entries without a source.
func (p SourcePredicate) Match(entry logapi.LogEntry) bool {
	if len(p.set) == 0 {
		return true
	}
	source := entry.Source()
	if source == "" {
		return false
	}
	_, ok := p.set[source]
	return ok
}

// Apply returns the entries that pass p. The input is never modified.
func (p SourcePredicate) Apply(entries []logapi.LogEntry) []logapi.LogEntry {
	if p.Empty() {
		return slices.Clone(entries)
	}
	out := make([]logapi.LogEntry, 0, len(entries))
	for _, entry := range entries {
		if p.Match(entry) {
			out = append(out, entry)
		}
	}
	return out
}

// SearchMatcher tests free-text or regex search against raw lines.
type SearchMatcher struct {
	re      *regexp.Regexp
	literal string
	invalid bool
}

// NewSearchMatcher builds a matcher. With regex set the pattern is compiled
// case-insensitively; a pattern that does not compile degrades to a
// case-insensitive literal match and Invalid reports true.
func NewSearchMatcher(search string, regex bool) SearchMatcher {
	if search == "" {
		return SearchMatcher{}
	}
	if regex {
		re, err := regexp.Compile("(?i)" + search)
		if err == nil {
			return SearchMatcher{re: re}
		}
		return SearchMatcher{literal: strings.ToLower(search), invalid: true}
	}
	return SearchMatcher{literal: strings.ToLower(search)}
}

// Invalid reports whether a requested regex fell back to literal matching.
func (m SearchMatcher) Invalid() bool {
	return m.invalid
}

// Match reports whether text matches. An empty search matches everything.
func (m SearchMatcher) Match(text string) bool {
	if m.re != nil {
		return m.re.MatchString(text)
	}
	if m.literal == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), m.literal)
}

// ServerMatcher evaluates the server-side predicates locally, with the same
// semantics the log server applies: afterId is exclusive, levels compare
// case-insensitively against Parsed.Level, search runs against Raw.
func ServerMatcher(f logapi.Filter) func(logapi.LogEntry) bool {
	search := NewSearchMatcher(f.Search, f.Regex)
	levels := normalizeSet(f.Levels, strings.ToUpper)
	return func(entry logapi.LogEntry) bool {
		if f.AfterID > 0 && entry.ID <= f.AfterID {
			return false
		}
		if len(levels) > 0 {
			level := strings.ToUpper(entry.Level())
			if level == "" || !slices.Contains(levels, level) {
				return false
			}
		}
		return search.Match(entry.Raw)
	}
}

// normalizeSet trims, optionally maps, dedupes and sorts values. It returns nil
// for an empty result so zero-valued filters compare equal.
func normalizeSet(values []string, mapFn func(string) string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if mapFn != nil {
			v = mapFn(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
