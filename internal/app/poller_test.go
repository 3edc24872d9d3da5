package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/perch/internal/logapi"
	"github.com/five82/perch/internal/state"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 100; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

type fakeStatus struct {
	calls atomic.Int32
	fail  bool
}

func (f *fakeStatus) FetchStatus(ctx context.Context) (*logapi.StatusResponse, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("refused")
	}
	return &logapi.StatusResponse{BufferSize: 100, BufferUsed: 10, StdinOpen: true}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPoller_UpdatesStoreUntilCancelled(t *testing.T) {
	store := &state.Store{}
	client := &fakeStatus{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- RunPoller(ctx, store, client, 10*time.Millisecond, quietLogger()) }()

	deadline := time.After(2 * time.Second)
	for client.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("poller made %d calls, want >= 3", client.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("RunPoller returned %v, want nil", err)
	}

	snap := store.Snapshot()
	if !snap.HasStatus || snap.Status.BufferSize != 100 || snap.ConsecutiveFailures != 0 {
		t.Fatalf("store snapshot = %#v", snap)
	}
}

func TestRunPoller_RecordsFailures(t *testing.T) {
	store := &state.Store{}
	client := &fakeStatus{fail: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = RunPoller(ctx, store, client, 5*time.Millisecond, quietLogger()) }()

	deadline := time.After(2 * time.Second)
	for !store.Snapshot().IsOffline() {
		select {
		case <-deadline:
			t.Fatalf("store never went offline: %#v", store.Snapshot())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
