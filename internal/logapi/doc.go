// Package logapi provides an HTTP client and wire types for the log server.
//
// # Overview
//
// The log server buffers lines from a tailed process in a bounded ring and
// exposes them two ways: a paginated REST snapshot and a WebSocket push feed.
// This package covers the REST half and the message shapes shared by both.
//
// # Architecture
//
// The package is split into two files:
//
//   - client.go: HTTP client, query encoding, server address parsing
//   - types.go: LogEntry, ParsedLog, Filter, responses and stream messages
//
// # Client Usage
//
//	client, err := logapi.NewClient("127.0.0.1:8080")
//	if err != nil {
//		return fmt.Errorf("create client: %w", err)
//	}
//
//	resp, err := client.FetchLogs(ctx, logapi.Filter{Levels: []string{"ERROR"}, Limit: 500})
//	status, err := client.FetchStatus(ctx)
//	err = client.ClearLogs(ctx)
//	url := client.StreamURL() // ws://127.0.0.1:8080/ws/logs
//
// # Endpoints
//
//   - GET /api/logs: snapshot filtered by search, levels, regex, afterId, limit
//   - DELETE /api/logs: clears the server buffer (idempotent)
//   - GET /api/status: buffer capacity/occupancy, total received, uptime, stdin flag
//   - /ws/logs: live feed (see package stream); StreamURL derives it
//
// # Query Encoding
//
// Filter.Values omits zero fields. Levels are comma-joined, regex is sent as
// "true" only when set:
//
//	/api/logs?levels=WARN,ERROR&limit=10000&regex=true&search=time%28out%29
//
// # Entries
//
// A LogEntry always has an id, a timestamp and the raw line. Parsed is optional
// and holds whatever the server or the enricher extracted:
//
//	{
//	  "id": 42,
//	  "timestamp": "2025-01-01T10:00:00Z",
//	  "raw": "web-1 | level=error msg=timeout",
//	  "parsed": {"level": "ERROR", "message": "timeout", "source": "web-1"}
//	}
//
// The accessors Source, Level, Message and ParsedTime hide the nil check.
// Message falls back to Raw, and ParsedTime falls back to the entry timestamp.
// Ids increase monotonically on the server, and nothing else in the client
// relies on their order.
//
// # Types
//
// Filter mirrors the server's query and subscription filter:
//
//   - Search: substring, or a pattern when Regex is set (an invalid pattern
//     falls back to a substring match on the server)
//   - Levels: upper-case level names; empty means all
//   - AfterID: only entries with a larger id
//   - Limit: snapshot size; zero lets the server choose, and stream
//     subscriptions always send zero
//
// LogResponse carries the entries, the total match count and HasMore.
// StatusResponse carries buffer size and usage, total received, uptime and
// whether the producer's stdin is still open. StreamMessage and
// SubscribeMessage are the WebSocket envelopes used by package stream.
//
// # Request Handling
//
// All requests:
//   - Use the caller's context for cancellation
//   - Set Accept: application/json
//   - Send User-Agent: perch/0.1
//   - Have a 10 second client timeout
//
// # Error Handling
//
// Status codes >= 400 and undecodable bodies come back as wrapped errors
// ("api GET /api/logs returned status 500", "decode response: ...").
// Transport failures are wrapped as "execute request: ...". The client never
// retries; the engine and the status poller decide what a failure means.
//
// # Server Address
//
// NewClient accepts "host:port", an http(s) URL, or a ws(s) URL. Paths, query
// strings and fragments are discarded so the same value works for both the
// REST and the stream endpoints. An empty value means 127.0.0.1:8080.
//
// # Testing Considerations
//
// The Fetcher interface covers the read side. Client tests run against
// httptest.Server and check the exact query strings sent.
package logapi
