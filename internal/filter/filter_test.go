package filter

import (
	"reflect"
	"testing"

	"github.com/five82/perch/internal/logapi"
)

func entry(id uint64, raw, level, source string) logapi.LogEntry {
	e := logapi.LogEntry{ID: id, Raw: raw}
	if level != "" || source != "" {
		e.Parsed = &logapi.ParsedLog{Level: level, Source: source}
	}
	return e
}

func TestSplit_SourcesStayClientSide(t *testing.T) {
	f := Filter{
		Search:  "timeout",
		Regex:   true,
		Levels:  []string{"warn", "ERROR", "warn"},
		Sources: []string{"web-1"},
		AfterID: 9,
		Limit:   50,
	}
	server, client := f.Split()

	want := logapi.Filter{Search: "timeout", Regex: true, Levels: []string{"ERROR", "WARN"}, AfterID: 9, Limit: 50}
	if !reflect.DeepEqual(server, want) {
		t.Fatalf("server half = %#v, want %#v", server, want)
	}
	if client.Empty() {
		t.Fatalf("client predicate empty, want source set")
	}
	if !client.Match(entry(1, "", "", "web-1")) || client.Match(entry(2, "", "", "db-1")) {
		t.Fatalf("client predicate does not test source membership")
	}
}

func TestSourcePredicate(t *testing.T) {
	entries := []logapi.LogEntry{
		entry(1, "a", "", "web-1"),
		entry(2, "b", "", "db-1"),
		entry(3, "c", "", ""),
		entry(4, "d", "", "web-1"),
	}

	t.Run("empty matches all", func(t *testing.T) {
		for _, p := range []SourcePredicate{NewSourcePredicate(nil), NewSourcePredicate([]string{" ", ""})} {
			got := p.Apply(entries)
			if !reflect.DeepEqual(got, entries) {
				t.Fatalf("Apply = %#v, want all entries", got)
			}
		}
	})

	t.Run("set membership", func(t *testing.T) {
		p := NewSourcePredicate([]string{"web-1"})
		got := p.Apply(entries)
		if len(got) != 2 || got[0].ID != 1 || got[1].ID != 4 {
			t.Fatalf("Apply = %#v, want ids 1 and 4", got)
		}
		for _, e := range entries {
			if e.Source() == "web-1" && !p.Match(e) {
				t.Fatalf("entry %d with matching source excluded", e.ID)
			}
		}
	})

	t.Run("sourceless entries excluded by non-empty set", func(t *testing.T) {
		p := NewSourcePredicate([]string{"web-1", "db-1"})
		if p.Match(entries[2]) {
			t.Fatalf("entry without source matched a non-empty set")
		}
	})
}

func TestSearchMatcher(t *testing.T) {
	tests := []struct {
		name        string
		search      string
		regex       bool
		text        string
		want        bool
		wantInvalid bool
	}{
		{"empty matches", "", false, "anything", true, false},
		{"literal case-insensitive", "TimeOut", false, "request timeout after 5s", true, false},
		{"literal miss", "panic", false, "all good", false, false},
		{"literal treats regex chars literally", "a.c", false, "abc", false, false},
		{"regex case-insensitive", `err(or)?\s+\d+`, true, "ERROR 503 upstream", true, false},
		{"regex miss", `^GET`, true, "POST /", false, false},
		{"invalid regex degrades to literal hit", "foo(", true, "call FOO( bar", true, true},
		{"invalid regex degrades to literal miss", "[unclosed", true, "nothing", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSearchMatcher(tt.search, tt.regex)
			if got := m.Match(tt.text); got != tt.want {
				t.Fatalf("Match(%q) = %v, want %v", tt.text, got, tt.want)
			}
			if m.Invalid() != tt.wantInvalid {
				t.Fatalf("Invalid() = %v, want %v", m.Invalid(), tt.wantInvalid)
			}
		})
	}
}

func TestServerMatcher(t *testing.T) {
	entries := []logapi.LogEntry{
		entry(1, "boot ok", "INFO", ""),
		entry(2, "disk slow", "warn", ""),
		entry(3, "db timeout", "ERROR", ""),
		entry(4, "raw timeout", "", ""),
	}
	tests := []struct {
		name   string
		filter logapi.Filter
		want   []uint64
	}{
		{"no predicates", logapi.Filter{}, []uint64{1, 2, 3, 4}},
		{"after id exclusive", logapi.Filter{AfterID: 2}, []uint64{3, 4}},
		{"levels case-insensitive", logapi.Filter{Levels: []string{"WARN", "error"}}, []uint64{2, 3}},
		{"levels exclude unparsed", logapi.Filter{Levels: []string{"INFO"}}, []uint64{1}},
		{"search", logapi.Filter{Search: "TIMEOUT"}, []uint64{3, 4}},
		{"regex plus level", logapi.Filter{Search: `^db`, Regex: true, Levels: []string{"ERROR"}}, []uint64{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := ServerMatcher(tt.filter)
			var got []uint64
			for _, e := range entries {
				if match(e) {
					got = append(got, e.ID)
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("matched %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServerEqual(t *testing.T) {
	base := Filter{Search: "x", Levels: []string{"WARN", "ERROR"}}
	tests := []struct {
		name  string
		other Filter
		want  bool
	}{
		{"same", Filter{Search: "x", Levels: []string{"ERROR", "warn"}}, true},
		{"sources ignored", Filter{Search: "x", Levels: []string{"ERROR", "WARN"}, Sources: []string{"a"}}, true},
		{"limit ignored", Filter{Search: "x", Levels: []string{"ERROR", "WARN"}, Limit: 5}, true},
		{"search differs", Filter{Search: "y", Levels: []string{"ERROR", "WARN"}}, false},
		{"regex differs", Filter{Search: "x", Regex: true, Levels: []string{"ERROR", "WARN"}}, false},
		{"levels differ", Filter{Search: "x", Levels: []string{"ERROR"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.ServerEqual(tt.other); got != tt.want {
				t.Fatalf("ServerEqual = %v, want %v", got, tt.want)
			}
		})
	}
	if base.Equal(base.WithSources("a")) {
		t.Fatalf("Equal ignored sources")
	}
}

func TestToggleLevelAndWithSources(t *testing.T) {
	f := Filter{}
	f = f.ToggleLevel("warn")
	if !f.HasLevel("WARN") {
		t.Fatalf("ToggleLevel did not add WARN: %#v", f.Levels)
	}
	g := f.ToggleLevel("WARN")
	if g.HasLevel("WARN") {
		t.Fatalf("ToggleLevel did not remove WARN: %#v", g.Levels)
	}
	if !f.HasLevel("WARN") {
		t.Fatalf("ToggleLevel mutated its receiver")
	}

	s := f.WithSources("web-1", " ", "web-1")
	if !reflect.DeepEqual(s.Sources, []string{"web-1"}) {
		t.Fatalf("WithSources = %#v", s.Sources)
	}
	if cleared := s.WithSources(); cleared.Sources != nil {
		t.Fatalf("WithSources() = %#v, want nil", cleared.Sources)
	}
}

func TestSummaryAndActive(t *testing.T) {
	if (Filter{}).Active() {
		t.Fatalf("zero filter reported active")
	}
	f := Filter{Search: "tim(e|out)", Regex: true, Levels: []string{"warn", "ERROR"}, Sources: []string{"web-1"}}
	if !f.Active() {
		t.Fatalf("filter reported inactive")
	}
	want := "/tim(e|out)/ level=ERROR,WARN src=web-1"
	if got := f.Summary(); got != want {
		t.Fatalf("Summary() = %q, want %q", got, want)
	}
	if got := (Filter{Search: "db"}).Summary(); got != `"db"` {
		t.Fatalf("Summary() = %q", got)
	}
}
