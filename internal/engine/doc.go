// Package engine owns the client-side log window.
//
// # Overview
//
// An Engine merges two feeds into one retained set and derives from it what
// the viewer shows. Snapshot loads replace the set wholesale. Live records from
// the stream are appended one at a time. The set is deduplicated by id, kept in
// arrival order and bounded by capacity with oldest-first eviction.
//
// # Architecture
//
//	  logapi.Client / logtail.Source           stream.Client
//	 ┌───────────────────────────┐      ┌─────────────────────────┐
//	 │ FetchLogs(server filter)  │      │ Events(): LogEvent,     │
//	 └─────────────┬─────────────┘      │ StatusEvent, Connection │
//	               │ LoadSnapshot       └────────────┬────────────┘
//	               ↓                                 │ Run
//	 ┌───────────────────────────────────────────────↓───────────┐
//	 │ Engine                                                    │
//	 │   entries  []LogEntry   retained set, arrival order       │
//	 │   ids      set          dedupe index                      │
//	 │   sources  counts       distinct non-empty sources        │
//	 │   visible  []LogEntry   entries passing the source filter │
//	 └───────────────┬───────────────────────────────┬───────────┘
//	                 │ Changes() + Snapshot()        │ UpdateFilter
//	                 ↓                               ↓
//	              ui.Model                     stream.Client
//
// # Filter Split
//
// A filter.Filter has two halves:
//
//   - Server half (search, regex, levels, afterId): sent to the snapshot
//     fetcher with Limit set to capacity, and to the FilterSubscriber with
//     Limit zero.
//   - Client half (source set): evaluated locally against retained entries.
//
// ApplyFilter stores the filter and re-derives the visible view at once. Only a
// change to the server half resubscribes and reloads:
//
//	e.ApplyFilter(ctx, f.WithSources("web-1"))   // local, no network
//	e.ApplyFilter(ctx, f.ToggleLevel("ERROR"))   // resubscribe + snapshot
//
// Filter changes are serialized: the filter is stored and handed to the
// subscriber under one lock, so concurrent ApplyFilter calls leave the stream
// subscribed to the filter stored last.
//
// # Retention Rules
//
//   - Snapshot: duplicates collapse to their first occurrence, then only the
//     newest capacity entries are kept. A failed snapshot leaves the set as it
//     was and is reported through View.LastError.
//   - Live: a record whose id is retained is ignored. Otherwise it is enriched,
//     appended, and the oldest entries are evicted until the set fits.
//   - Eviction removes the id from the index, so an evicted id may come back.
//   - Pause: live records arriving while paused are dropped for good and
//     counted in View.DroppedWhilePaused. Snapshots still load.
//   - ClearAll empties the set but keeps the filter and subscription.
//
// # Snapshot Races
//
// Overlapping snapshot loads are not cancelled. Whichever settles last replaces
// the set, and Loading is cleared whenever any request settles.
//
// # Concurrency Model
//
// All state sits behind one sync.RWMutex. Mutations take the write lock for the
// whole change, so a reader never sees a half-replaced set. Network calls run
// outside the lock. Every read method returns a copy.
//
// Run is the only goroutine that ingests live records. After each mutation the
// engine sends on Changes(), a channel with a buffer of one. Signals coalesce,
// and a receiver calls Snapshot() to read the current View:
//
//	for range eng.Changes() {
//		view := eng.Snapshot()
//		render(view)
//	}
//
// View.Version increases on every mutation, which lets renderers skip redraws.
//
// # Usage Example
//
//	sc, _ := stream.New(client.StreamURL(), stream.Options{})
//	eng := engine.New(client, engine.Options{Capacity: 10000, Subscriber: sc})
//
//	go sc.Run(ctx)
//	go eng.Run(ctx, sc.Events())
//	if err := eng.LoadSnapshot(ctx, eng.Filter()); err != nil {
//		log.Printf("initial snapshot: %v", err)
//	}
//
// # Testing Considerations
//
// SnapshotFetcher and FilterSubscriber are small interfaces. Tests drive the
// engine with in-memory fakes and can settle fetches in any order to pin the
// last-settle-wins outcome.
package engine
