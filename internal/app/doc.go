// Package app is perch's composition root.
//
// Run loads config and prefs, points logging at a file, and then starts one of
// two modes.
//
// Live mode (default) runs these goroutines under one errgroup:
//
//	stream.Client.Run   dial /ws/logs, subscribe, reconnect every 2s on loss
//	engine.Run          single consumer of stream events
//	RunPoller           GET /api/status with exponential backoff on failure
//	initial snapshot    GET /api/logs?limit=<capacity>
//	ui.Run              Bubble Tea program; quitting cancels the group
//
// Offline mode (-file) loads a snapshot from logtail.Source and runs only the
// UI. There is no stream or poller.
//
// Fatal errors are the ones that stop startup: a bad config, an unusable
// server address, or a log file that cannot be opened. Everything after that
// is recoverable and ends up in the log file or the footer.
package app
