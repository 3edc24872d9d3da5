package logapi

import (
	"encoding/json"
	"time"
)

// Stream message discriminants.
const (
	MessageSubscribe = "subscribe"
	MessageLog       = "log"
	MessageStatus    = "status"
	MessagePong      = "pong"
)

// LogEntry mirrors a single record returned by /api/logs and pushed on /ws/logs.
// Raw is the original line and is never rewritten by the client.
type LogEntry struct {
	ID        uint64     `json:"id"`
	Timestamp string     `json:"timestamp"`
	Raw       string     `json:"raw"`
	Parsed    *ParsedLog `json:"parsed,omitempty"`
}

// ParsedLog holds fields the server or the enricher extracted from Raw.
// A nil ParsedLog marks an unstructured entry.
type ParsedLog struct {
	Time    string         `json:"time,omitempty"`
	Level   string         `json:"level,omitempty"`
	Message string         `json:"message,omitempty"`
	Source  string         `json:"source,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Source returns the detected source label, or "" for unstructured entries.
func (e LogEntry) Source() string {
	if e.Parsed == nil {
		return ""
	}
	return e.Parsed.Source
}

// Level returns the parsed level, or "".
func (e LogEntry) Level() string {
	if e.Parsed == nil {
		return ""
	}
	return e.Parsed.Level
}

// Message returns the parsed message, falling back to Raw.
func (e LogEntry) Message() string {
	if e.Parsed != nil && e.Parsed.Message != "" {
		return e.Parsed.Message
	}
	return e.Raw
}

// ParsedTime returns the entry timestamp as time.Time when possible.
func (e LogEntry) ParsedTime() time.Time {
	if e.Parsed != nil && e.Parsed.Time != "" {
		if t := parseTime(e.Parsed.Time); !t.IsZero() {
			return t
		}
	}
	return parseTime(e.Timestamp)
}

// Filter is the server-side filter: the only filter shape sent to /api/logs
// and in subscribe messages.
type Filter struct {
	Search  string   `json:"search,omitempty"`
	Levels  []string `json:"levels,omitempty"`
	Regex   bool     `json:"regex,omitempty"`
	AfterID uint64   `json:"afterId,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// LogResponse mirrors the /api/logs payload.
type LogResponse struct {
	Logs    []LogEntry `json:"logs"`
	Total   int        `json:"total"`
	HasMore bool       `json:"hasMore"`
}

// StatusResponse mirrors /api/status.
type StatusResponse struct {
	BufferSize    int    `json:"bufferSize"`
	BufferUsed    int    `json:"bufferUsed"`
	TotalReceived uint64 `json:"totalReceived"`
	Uptime        string `json:"uptime"`
	StdinOpen     bool   `json:"stdinOpen"`
}

// SubscribeMessage is the only client->server stream message.
type SubscribeMessage struct {
	Type   string `json:"type"`
	Filter Filter `json:"filter"`
}

// NewSubscribe builds a subscribe message for filter.
func NewSubscribe(filter Filter) SubscribeMessage {
	return SubscribeMessage{Type: MessageSubscribe, Filter: filter}
}

// StreamMessage is a server->client stream message. Data is decoded according
// to Type.
type StreamMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UpstreamStatus is the payload of a status message.
type UpstreamStatus struct {
	StdinOpen bool `json:"stdinOpen"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(time.DateTime, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
