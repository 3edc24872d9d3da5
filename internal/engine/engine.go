package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/five82/perch/internal/enrich"
	"github.com/five82/perch/internal/filter"
	"github.com/five82/perch/internal/logapi"
	"github.com/five82/perch/internal/stream"
)

// DefaultCapacity bounds the retained set when Options.Capacity is zero.
const DefaultCapacity = 10000

// SnapshotFetcher performs one-shot historical reads.
type SnapshotFetcher interface {
	FetchLogs(ctx context.Context, filter logapi.Filter) (logapi.LogResponse, error)
}

// FilterSubscriber receives the server half of every filter change. The stream
// client satisfies it.
type FilterSubscriber interface {
	UpdateFilter(filter logapi.Filter) error
}

// Options configure an Engine.
type Options struct {
	Capacity   int
	Subscriber FilterSubscriber
	Filter     filter.Filter
	Logger     *slog.Logger
}

// View is a consistent copy of the engine state for rendering.
type View struct {
	Visible            []logapi.LogEntry
	Sources            []string
	Retained           int
	Capacity           int
	Filter             filter.Filter
	Paused             bool
	Loading            bool
	Connection         stream.State
	UpstreamOpen       bool
	LastError          error
	DroppedWhilePaused int
	Evicted            int
	Version            uint64
}

// Engine owns the retained set: a bounded, id-deduplicated, arrival-ordered
// window fed by snapshot loads and live ingestion.
type Engine struct {
	fetcher  SnapshotFetcher
	sub      FilterSubscriber
	capacity int
	logger   *slog.Logger
	changes  chan struct{}

	// applyMu orders filter changes so the subscriber always ends up with the
	// filter that was stored last.
	applyMu sync.Mutex

	mu        sync.RWMutex
	entries   []logapi.LogEntry
	ids       map[uint64]struct{}
	sources   map[string]int
	visible   []logapi.LogEntry
	filter    filter.Filter
	predicate filter.SourcePredicate

	paused       bool
	loading      bool
	connection   stream.State
	upstreamOpen bool
	lastErr      error
	dropped      int
	evicted      int
	version      uint64
}

// New builds an engine reading snapshots from fetcher.
func New(fetcher SnapshotFetcher, opts Options) *Engine {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	f := opts.Filter.WithSources(opts.Filter.Sources...)
	return &Engine{
		fetcher:      fetcher,
		sub:          opts.Subscriber,
		capacity:     capacity,
		logger:       logger.With("component", "engine"),
		changes:      make(chan struct{}, 1),
		ids:          make(map[uint64]struct{}),
		sources:      make(map[string]int),
		filter:       f,
		predicate:    f.Client(),
		upstreamOpen: true,
	}
}

// Capacity returns the retained-set bound.
func (e *Engine) Capacity() int {
	return e.capacity
}

// Changes signals after every mutation. Signals coalesce; receivers should read
// Snapshot after each one.
func (e *Engine) Changes() <-chan struct{} {
	return e.changes
}

// LoadSnapshot fetches the server half of f (limited to capacity) and replaces
// the retained set with the enriched result. On failure the retained set is
// left untouched. Loading is cleared whenever a request settles; overlapping
// loads are not cancelled and the last one to settle wins.
func (e *Engine) LoadSnapshot(ctx context.Context, f filter.Filter) error {
	server := f.Server()
	server.Limit = e.capacity

	e.mu.Lock()
	e.loading = true
	e.touchLocked()
	e.mu.Unlock()
	e.notify()

	resp, err := e.fetcher.FetchLogs(ctx, server)
	entries := enrich.All(resp.Logs)

	e.mu.Lock()
	defer e.notify()
	defer e.mu.Unlock()

	e.loading = false
	e.touchLocked()
	if err != nil {
		e.lastErr = fmt.Errorf("load snapshot: %w", err)
		e.logger.Warn("snapshot failed", "err", err)
		return e.lastErr
	}
	e.lastErr = nil
	e.replaceLocked(entries)
	e.logger.Debug("snapshot loaded", "entries", len(e.entries), "total", resp.Total, "has_more", resp.HasMore)
	return nil
}

// IngestLive appends one pushed record. Records arriving while paused are
// dropped for good; duplicates of a retained id are ignored. It reports whether
// the entry was retained.
func (e *Engine) IngestLive(entry logapi.LogEntry) bool {
	e.mu.Lock()
	if e.paused {
		e.dropped++
		e.touchLocked()
		e.mu.Unlock()
		e.notify()
		return false
	}
	if _, dup := e.ids[entry.ID]; dup {
		e.mu.Unlock()
		return false
	}
	e.appendLocked(enrich.Entry(entry))
	e.trimLocked()
	e.touchLocked()
	e.mu.Unlock()
	e.notify()
	return true
}

// SetPaused toggles live ingestion.
func (e *Engine) SetPaused(paused bool) {
	e.mu.Lock()
	if e.paused == paused {
		e.mu.Unlock()
		return
	}
	e.paused = paused
	e.touchLocked()
	e.mu.Unlock()
	e.notify()
}

// Paused reports whether live ingestion is suspended.
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

// ClearAll empties the retained set. The filter and subscription are kept.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	e.replaceLocked(nil)
	e.touchLocked()
	e.mu.Unlock()
	e.notify()
}

// Sources returns the distinct non-empty sources of the retained set, sorted.
func (e *Engine) Sources() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sourcesLocked()
}

// Visible returns the retained set filtered by the source predicate.
func (e *Engine) Visible() []logapi.LogEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.visible)
}

// Retained returns the full retained set in arrival order.
func (e *Engine) Retained() []logapi.LogEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.entries)
}

// Loading reports whether a snapshot request is in flight.
func (e *Engine) Loading() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loading
}

// Filter returns the current filter.
func (e *Engine) Filter() filter.Filter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.filter.WithSources(e.filter.Sources...)
}

// ApplyFilter stores f and re-derives the visible view at once. When the server
// half changed, the subscriber is told and a fresh snapshot is loaded; a
// source-only edit stays local.
func (e *Engine) ApplyFilter(ctx context.Context, f filter.Filter) error {
	f = f.WithSources(f.Sources...)
	if !e.storeFilter(f) {
		return nil
	}
	return e.LoadSnapshot(ctx, f)
}

// storeFilter installs f and, when its server half changed, hands it to the
// subscriber before any later filter can be stored.
func (e *Engine) storeFilter(f filter.Filter) bool {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()

	e.mu.Lock()
	serverChanged := !e.filter.ServerEqual(f)
	e.filter = f
	e.predicate = f.Client()
	e.rederiveLocked()
	e.touchLocked()
	e.mu.Unlock()
	e.notify()

	if !serverChanged || e.sub == nil {
		return serverChanged
	}
	live := f.Server()
	live.Limit = 0
	if err := e.sub.UpdateFilter(live); err != nil {
		// The stream resubscribes with the stored filter on its next open.
		e.logger.Warn("update subscription", "err", err)
	}
	return true
}

// Run consumes stream events until ctx ends or events is closed. It is the
// only goroutine that feeds live records into the engine.
func (e *Engine) Run(ctx context.Context, events <-chan stream.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				e.setConnection(stream.StateClosed)
				return
			}
			e.handle(ev)
		}
	}
}

func (e *Engine) handle(ev stream.Event) {
	switch ev := ev.(type) {
	case stream.LogEvent:
		e.IngestLive(ev.Entry)
	case stream.StatusEvent:
		e.mu.Lock()
		e.upstreamOpen = ev.UpstreamOpen
		e.touchLocked()
		e.mu.Unlock()
		e.notify()
	case stream.ConnectionEvent:
		e.setConnection(ev.State)
	}
}

func (e *Engine) setConnection(state stream.State) {
	e.mu.Lock()
	if e.connection == state {
		e.mu.Unlock()
		return
	}
	e.connection = state
	e.touchLocked()
	e.mu.Unlock()
	e.notify()
}

// Snapshot returns a copy of everything the renderer needs, taken under one lock.
func (e *Engine) Snapshot() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return View{
		Visible:            slices.Clone(e.visible),
		Sources:            e.sourcesLocked(),
		Retained:           len(e.entries),
		Capacity:           e.capacity,
		Filter:             e.filter.WithSources(e.filter.Sources...),
		Paused:             e.paused,
		Loading:            e.loading,
		Connection:         e.connection,
		UpstreamOpen:       e.upstreamOpen,
		LastError:          e.lastErr,
		DroppedWhilePaused: e.dropped,
		Evicted:            e.evicted,
		Version:            e.version,
	}
}

// replaceLocked swaps in a new retained set: duplicates collapse to their first
// occurrence and only the newest capacity entries are kept.
func (e *Engine) replaceLocked(entries []logapi.LogEntry) {
	clear(e.ids)
	clear(e.sources)
	e.entries = make([]logapi.LogEntry, 0, min(len(entries), e.capacity))
	e.visible = nil

	for _, entry := range entries {
		if _, dup := e.ids[entry.ID]; dup {
			continue
		}
		e.appendLocked(entry)
	}
	if over := len(e.entries) - e.capacity; over > 0 {
		e.evictLocked(over)
	}
	e.rederiveLocked()
}

func (e *Engine) appendLocked(entry logapi.LogEntry) {
	e.entries = append(e.entries, entry)
	e.ids[entry.ID] = struct{}{}
	if source := entry.Source(); source != "" {
		e.sources[source]++
	}
	if e.predicate.Match(entry) {
		e.visible = append(e.visible, entry)
	}
}

// trimLocked evicts from the front until the set fits capacity.
func (e *Engine) trimLocked() {
	if over := len(e.entries) - e.capacity; over > 0 {
		e.evictLocked(over)
		e.evicted += over
	}
}

// evictLocked drops the n oldest entries. The visible view is an ordered
// subsequence of the retained set, so evicted visible entries are at its front.
func (e *Engine) evictLocked(n int) {
	for _, entry := range e.entries[:n] {
		delete(e.ids, entry.ID)
		if source := entry.Source(); source != "" {
			if e.sources[source]--; e.sources[source] <= 0 {
				delete(e.sources, source)
			}
		}
		if len(e.visible) > 0 && e.visible[0].ID == entry.ID {
			clear(e.visible[:1])
			e.visible = e.visible[1:]
		}
	}
	clear(e.entries[:n])
	e.entries = e.entries[n:]
}

func (e *Engine) rederiveLocked() {
	e.visible = e.predicate.Apply(e.entries)
}

func (e *Engine) sourcesLocked() []string {
	out := make([]string, 0, len(e.sources))
	for source := range e.sources {
		out = append(out, source)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) touchLocked() {
	e.version++
}

func (e *Engine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}
