package enrich

import (
	"reflect"
	"testing"

	"github.com/five82/perch/internal/logapi"
)

func TestEntry(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		parsed      *logapi.ParsedLog
		wantSource  string
		wantMessage string
	}{
		{
			name:        "compose prefix",
			raw:         "web-1  | GET /health 200",
			wantSource:  "web-1",
			wantMessage: "GET /health 200",
		},
		{
			name:        "dotted index",
			raw:         "worker.2 | job done",
			wantSource:  "worker.2",
			wantMessage: "job done",
		},
		{
			name:        "underscore and no space",
			raw:         "db_main|ready",
			wantSource:  "db_main",
			wantMessage: "ready",
		},
		{
			name:        "ansi colored prefix",
			raw:         "\x1b[36mapi-1  |\x1b[0m listening on :8080",
			wantSource:  "api-1",
			wantMessage: "listening on :8080",
		},
		{
			name:        "keeps other parsed fields",
			raw:         "web-1 | boom",
			parsed:      &logapi.ParsedLog{Level: "ERROR", Time: "2025-01-01T00:00:00Z", Message: "web-1 | boom"},
			wantSource:  "web-1",
			wantMessage: "boom",
		},
		{
			name:        "no prefix",
			raw:         "2025-01-01 INFO plain line",
			wantSource:  "",
			wantMessage: "",
		},
		{
			name:        "pipe later in line",
			raw:         "cat file | grep x",
			wantSource:  "",
			wantMessage: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := logapi.LogEntry{ID: 7, Raw: tt.raw, Parsed: tt.parsed}
			got := Entry(in)

			if got.Raw != tt.raw {
				t.Fatalf("Raw = %q, want unchanged %q", got.Raw, tt.raw)
			}
			if got.Source() != tt.wantSource {
				t.Fatalf("Source() = %q, want %q", got.Source(), tt.wantSource)
			}
			if tt.wantSource == "" {
				if !reflect.DeepEqual(got, in) {
					t.Fatalf("unmatched entry changed: %#v", got)
				}
				return
			}
			if got.Parsed.Message != tt.wantMessage {
				t.Fatalf("Message = %q, want %q", got.Parsed.Message, tt.wantMessage)
			}
			if tt.parsed != nil {
				if got.Parsed.Level != tt.parsed.Level || got.Parsed.Time != tt.parsed.Time {
					t.Fatalf("parsed fields not preserved: %#v", got.Parsed)
				}
				if tt.parsed.Source != "" || tt.parsed.Message != "web-1 | boom" {
					t.Fatalf("input ParsedLog was mutated: %#v", tt.parsed)
				}
			}
		})
	}
}

func TestEntry_ExistingSourceUntouched(t *testing.T) {
	in := logapi.LogEntry{ID: 1, Raw: "web-1 | x", Parsed: &logapi.ParsedLog{Source: "nginx"}}
	got := Entry(in)
	if got.Parsed != in.Parsed {
		t.Fatalf("Entry replaced ParsedLog of an already-sourced entry")
	}
}

func TestEntry_Idempotent(t *testing.T) {
	inputs := []logapi.LogEntry{
		{ID: 1, Raw: "web-1  | GET /health 200"},
		{ID: 2, Raw: "no prefix here"},
		{ID: 3, Raw: "a|b|c"},
		{ID: 4, Raw: "", Parsed: &logapi.ParsedLog{Level: "INFO"}},
		{ID: 5, Raw: "\x1b[31mred-1 |\x1b[0m hi"},
	}
	for _, in := range inputs {
		once := Entry(in)
		twice := Entry(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("Entry not idempotent for %q: %#v vs %#v", in.Raw, once, twice)
		}
	}
}

func TestAll(t *testing.T) {
	in := []logapi.LogEntry{{ID: 1, Raw: "a-1 | x"}, {ID: 2, Raw: "plain"}}
	out := All(in)
	if len(out) != 2 || out[0].Source() != "a-1" || out[1].Source() != "" {
		t.Fatalf("All = %#v", out)
	}
	if in[0].Parsed != nil {
		t.Fatalf("All mutated its input")
	}
}
