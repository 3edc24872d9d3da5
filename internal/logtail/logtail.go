package logtail

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/five82/perch/internal/filter"
	"github.com/five82/perch/internal/logapi"
)

// Line is one line of a log file with its 1-based line number.
type Line struct {
	Number uint64
	Text   string
}

// Read returns at most maxLines lines from the end of the file at path.
// A missing file yields no lines and no error.
func Read(path string, maxLines int) ([]Line, error) {
	lines, _, err := ReadMatching(path, maxLines, nil)
	return lines, err
}

// ReadMatching returns the last maxLines lines accepted by keep (nil keeps
// everything) plus the number of lines keep accepted in total.
func ReadMatching(path string, maxLines int, keep func(Line) bool) ([]Line, int, error) {
	if maxLines <= 0 {
		return nil, 0, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()
	return tail(file, maxLines, keep)
}

func tail(r io.Reader, maxLines int, keep func(Line) bool) ([]Line, int, error) {
	ring := make([]Line, maxLines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var number uint64
	count := 0
	idx := 0
	for scanner.Scan() {
		number++
		line := Line{Number: number, Text: scanner.Text()}
		if keep != nil && !keep(line) {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % maxLines
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log: %w", err)
	}

	n := min(count, maxLines)
	lines := make([]Line, n)
	if count >= maxLines {
		for i := 0; i < n; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:n])
	}
	return lines, count, nil
}

const defaultLimit = 1000

// Source serves snapshots from a local file, standing in for the log server
// when perch runs offline. Line numbers are used as entry ids.
type Source struct {
	Path string
}

// FetchLogs applies the server-side filter to every line and returns the newest
// matches, up to f.Limit.
func (s Source) FetchLogs(ctx context.Context, f logapi.Filter) (logapi.LogResponse, error) {
	if err := ctx.Err(); err != nil {
		return logapi.LogResponse{}, err
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	match := filter.ServerMatcher(f)
	lines, total, err := ReadMatching(s.Path, limit, func(l Line) bool {
		return match(ToEntry(l))
	})
	if err != nil {
		return logapi.LogResponse{}, err
	}

	logs := make([]logapi.LogEntry, 0, len(lines))
	for _, l := range lines {
		logs = append(logs, ToEntry(l))
	}
	return logapi.LogResponse{Logs: logs, Total: total, HasMore: total > len(logs)}, nil
}

var (
	levelRe     = regexp.MustCompile(`\b(DEBUG|INFO|WARN(?:ING)?|ERROR|FATAL)\b`)
	timestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)
)

// ToEntry converts a file line into a log entry. JSON lines contribute their
// level, message, time and source fields; plain lines get a level when one
// appears as a word.
func ToEntry(l Line) logapi.LogEntry {
	entry := logapi.LogEntry{ID: l.Number, Raw: l.Text}
	if parsed, ok := parseJSON(l.Text); ok {
		entry.Parsed = parsed
		entry.Timestamp = parsed.Time
		return entry
	}
	ts := timestampRe.FindString(l.Text)
	level := ""
	if m := levelRe.FindStringSubmatch(l.Text); m != nil {
		level = normalizeLevel(m[1])
	}
	if ts != "" || level != "" {
		entry.Timestamp = ts
		entry.Parsed = &logapi.ParsedLog{Time: ts, Level: level}
	}
	return entry
}

func parseJSON(text string) (*logapi.ParsedLog, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, false
	}
	parsed := &logapi.ParsedLog{Fields: fields}
	parsed.Level = normalizeLevel(pick(fields, "level", "lvl", "severity"))
	parsed.Message = pick(fields, "msg", "message")
	parsed.Source = pick(fields, "source", "service", "component")
	parsed.Time = pick(fields, "time", "ts", "timestamp")
	return parsed, true
}

func pick(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizeLevel(level string) string {
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "WARNING" {
		return "WARN"
	}
	return level
}
