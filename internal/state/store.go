package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/perch/internal/logapi"
)

// Snapshot is what the viewer knows about the log server from status polls.
type Snapshot struct {
	Status    logapi.StatusResponse
	HasStatus bool

	LastPoll            time.Time // last attempt, successful or not
	LastSuccess         time.Time
	LastError           error
	ConsecutiveFailures int

	// UpstreamClosedAt is when a poll first reported the producer closed. It is
	// zero while the producer is open or nothing is known yet.
	UpstreamClosedAt time.Time

	// IngestRate is records per second received by the server between the last
	// two successful polls.
	IngestRate float64
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// UpstreamClosed reports whether the last good status said the producer is gone.
func (s Snapshot) UpstreamClosed() bool {
	return s.HasStatus && !s.Status.StdinOpen
}

// BufferPercent reports server ring-buffer usage in the range 0-100.
func (s Snapshot) BufferPercent() int {
	if !s.HasStatus || s.Status.BufferSize <= 0 {
		return 0
	}
	pct := s.Status.BufferUsed * 100 / s.Status.BufferSize
	return min(max(pct, 0), 100)
}

// Store is shared by the status poller (writer) and the viewer (reader).
// The zero value is ready to use.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// Update records the outcome of one status poll. A failed poll keeps the last
// good status and only counts the failure.
func (s *Store) Update(status *logapi.StatusResponse, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	snap := &s.snapshot
	snap.LastPoll = now

	if err != nil {
		snap.LastError = err
		snap.ConsecutiveFailures++
		return
	}
	snap.LastError = nil
	snap.ConsecutiveFailures = 0

	if status == nil {
		snap.HasStatus = false
		snap.IngestRate = 0
		snap.UpstreamClosedAt = time.Time{}
		snap.LastSuccess = now
		return
	}

	snap.IngestRate = ingestRate(*snap, *status, now)
	switch {
	case status.StdinOpen:
		snap.UpstreamClosedAt = time.Time{}
	case snap.UpstreamClosedAt.IsZero():
		snap.UpstreamClosedAt = now
	}
	snap.Status = *status
	snap.HasStatus = true
	snap.LastSuccess = now
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// ingestRate compares next with the previous good status. A shrinking total
// means the server restarted, which yields zero rather than a negative rate.
func ingestRate(prev Snapshot, next logapi.StatusResponse, now time.Time) float64 {
	if !prev.HasStatus || prev.LastSuccess.IsZero() {
		return 0
	}
	elapsed := now.Sub(prev.LastSuccess).Seconds()
	if elapsed <= 0 || next.TotalReceived < prev.Status.TotalReceived {
		return 0
	}
	return float64(next.TotalReceived-prev.Status.TotalReceived) / elapsed
}
