// Package stream maintains the live WebSocket subscription to the log server.
//
// # Overview
//
// A Client holds at most one connection to /ws/logs. It subscribes with the
// current filter whenever a connection opens, decodes pushed messages into
// typed events, and reconnects after any failure until it is closed.
//
// # State Machine
//
//	closed ──Run──> connecting ──dial ok──> open ──read error──> closed
//	                    │                                          │
//	                    └──dial error──> closed ──ReconnectDelay──>┘
//
// State() reports the current state. Every transition is also delivered as a
// ConnectionEvent.
//
// # Wire Protocol
//
// The only message the client sends is a subscription:
//
//	{"type":"subscribe","filter":{"search":"timeout","levels":["ERROR"]}}
//
// It is sent on every transition into open, using the filter the client
// currently remembers. UpdateFilter stores a new filter and resends it on the
// open connection. When no connection is open the filter waits for the next
// open, so the live feed follows the latest edit without a reconnect.
//
// Inbound messages carry a "type" discriminant and a "data" payload:
//
//	{"type":"log","data":{"id":42,"timestamp":"...","raw":"web-1 | GET /"}}
//	{"type":"status","data":{"stdinOpen":false}}
//	{"type":"pong"}
//
// # Events
//
// Decoded messages are delivered in arrival order on Events():
//
//   - "log"    -> LogEvent{Entry}
//   - "status" -> StatusEvent{UpstreamOpen}
//   - anything else (e.g. "pong") is ignored
//
// One consumer (the engine) reads the channel, so ingestion stays strictly
// sequential. The channel is buffered (256 by default). When it is full the
// reader waits instead of dropping records. The channel closes when Run
// returns.
//
// # Failure Handling
//
//   - Undecodable messages and unknown types are logged and dropped. The
//     connection stays open.
//   - Frames larger than Options.MaxMessageSize (8 MiB by default) are
//     drained and skipped. The connection stays open.
//   - Dial and transport errors close the connection and arm exactly one
//     reconnect timer (2 seconds by default).
//   - A failed subscribe send is treated as a transport error.
//
// # Lifecycle
//
//	c, err := stream.New(url, stream.Options{Filter: f, Logger: logger})
//	go c.Run(ctx)           // dial, read, reconnect
//	c.UpdateFilter(next)    // any goroutine
//	c.Close()               // idempotent
//
// Close cancels the pending reconnect timer, closes the socket and waits for
// Run to return, so nothing dials after teardown. Run on a closed client
// returns ErrClosed. Cancelling the context passed to Run has the same effect
// as Close for the read loop, and Run returns nil.
//
// # Options
//
//   - Dialer: custom websocket.Dialer; the default honors proxy settings and
//     has a 10 second handshake timeout
//   - Header: extra handshake headers (auth, cookies)
//   - ReconnectDelay: wait before redialing, 2s when zero
//   - Filter: subscribed on the first open
//   - EventBuffer: Events() capacity, 256 when zero
//   - MaxMessageSize: largest frame decoded, 8 MiB when zero
//   - Logger: slog logger; records carry component=stream
//
// # Concurrency Model
//
// One mutex guards the state, the remembered filter, the connection and the
// reconnect timer. It also serializes socket writes, because gorilla/websocket
// allows only one concurrent writer. Reads happen only in the Run goroutine.
//
// # Testing Considerations
//
// Tests run a real gorilla/websocket Upgrader behind httptest.Server and drive
// the client end to end: subscribe on open, resubscribe, bad frames, oversized
// frames, refused dials and reconnects.
package stream
