package api

import (
	"context"
	"sync"
)

// inflight tracks the running request per (user, viewport). Starting a new
// one cancels the previous request's context.
type inflight struct {
	mu      sync.Mutex
	seq     uint64
	running map[string]inflightEntry
}

type inflightEntry struct {
	seq    uint64
	cancel context.CancelFunc
}

func newInflight() *inflight {
	return &inflight{running: make(map[string]inflightEntry)}
}

func inflightKey(userID, viewport string) string {
	return userID + "\x00" + viewport
}

// begin derives a cancellable context for key, superseding any request
// already running under it. done must be called when the request ends.
func (f *inflight) begin(parent context.Context, key string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	f.mu.Lock()
	if prev, ok := f.running[key]; ok {
		prev.cancel()
	}
	f.seq++
	seq := f.seq
	f.running[key] = inflightEntry{seq: seq, cancel: cancel}
	f.mu.Unlock()

	return ctx, func() {
		f.mu.Lock()
		if cur, ok := f.running[key]; ok && cur.seq == seq {
			delete(f.running, key)
		}
		f.mu.Unlock()
		cancel()
	}
}

func (f *inflight) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.running)
}
