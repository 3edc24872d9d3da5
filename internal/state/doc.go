// Package state shares the latest /api/status result between the status
// poller and the UI.
//
// # Architecture
//
//	Producer (RunPoller):          Consumer (ui.Model):
//	┌────────────────────┐        ┌─────────────────────┐
//	│ client.FetchStatus │        │ tickMsg             │
//	│        ↓           │        │        ↓            │
//	│ store.Update()     │──────→ │ store.Snapshot()    │
//	│        ↓           │ RWMutex│        ↓            │
//	│ backoff, repeat    │        │ render header       │
//	└────────────────────┘        └─────────────────────┘
//
// # Update Semantics
//
//	// Success
//	store.Update(status, nil)
//	→ Status, HasStatus, LastSuccess, LastPoll set
//	→ IngestRate from the TotalReceived delta since the previous success
//	→ UpstreamClosedAt set on the first poll that sees stdinOpen=false,
//	  cleared when it reopens
//	→ LastError = nil, ConsecutiveFailures = 0
//
//	// Failure
//	store.Update(nil, err)
//	→ last good status, rate and close time unchanged
//	→ LastError = err, LastPoll = now, ConsecutiveFailures++
//
// A total lower than the previous one means the server restarted. The rate is
// zero for that poll instead of negative.
//
// # Derived Values
//
//   - IsOffline: two or more consecutive failures
//   - UpstreamClosed: the last good status reports the producer closed
//   - BufferPercent: server ring occupancy clamped to 0-100
//
// The stream also reports the upstream flag through status messages. The
// header shows it closed when either source says so, which keeps the flag
// correct while the stream is reconnecting.
//
// # Concurrency
//
// Store is safe for concurrent use from its zero value. Snapshot returns a copy
// (the error is re-wrapped), so readers never hold the lock while rendering.
//
//	store := &state.Store{}
//	store.Update(status, err) // poller
//	snap := store.Snapshot()  // UI
//	if snap.IsOffline() { ... }
package state
