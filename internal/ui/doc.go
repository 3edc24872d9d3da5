// Package ui is perch's Bubble Tea front end.
//
// # Layout
//
//	perch • 127.0.0.1:8080 • ● live • 120 shown / 400 kept / 10000 max • server buf 4%
//	15:04:05 INFO  web-1  GET /health 200
//	15:04:06 ERROR db     connection reset
//	...
//	filter /tim(e|out)/ level=ERROR src=web-1  sources db,web-1  follow
//	p pause • / search • 1-5 levels • s source • f follow • ? help • q quit
//
// The model never owns log data. It waits on engine.Changes, copies
// engine.Snapshot into its view, and re-renders the viewport only when the
// view version moves. Status bar data comes from state.Store on a tick.
//
// Filter edits are made against the model's own copy of the filter and sent
// to the engine from a tea.Cmd, so a slow snapshot reload never blocks input.
// Source edits (s, S) are resolved locally by the engine; search, regex and
// level edits reload the snapshot and resubscribe the stream.
//
// Theme and follow mode are saved to prefs whenever they change.
package ui
