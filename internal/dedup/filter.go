// Package dedup implements the node-local duplicate filter for message ids.
//
// Every inbound message passes its id through the filter before queuing.
// First sighting: accept and record. Any later sighting: drop silently.
// Check-and-record is one atomic step, so two copies of the same report
// arriving on different connections cannot both be accepted.
package dedup

import (
	"sync"
	"time"
)

// Filter is a concurrent-safe first-seen membership set over message ids.
//
// With retention 0 ids are held for the full process lifetime, which matches
// the at-most-once enqueue contract for a bounded simulation run. A non-zero
// retention enables time-window eviction for long-running deployments, at the
// cost of re-accepting a duplicate that arrives after the window.
type Filter struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	retention time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Filter. retention 0 means never evict.
func New(retention time.Duration) *Filter {
	f := &Filter{
		entries:   make(map[string]time.Time),
		retention: retention,
		done:      make(chan struct{}),
	}
	if retention > 0 {
		go f.reap()
	}
	return f
}

// Close stops the background reaper, if any. Idempotent. The filter itself
// remains usable; only eviction stops.
func (f *Filter) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// Accept records id and returns true the first time id is seen by this
// filter; it returns false on every subsequent call with the same id.
func (f *Filter) Accept(id string) bool {
	now := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	if exp, ok := f.entries[id]; ok {
		if f.retention == 0 || now.Before(exp) {
			return false
		}
	}
	if f.retention > 0 {
		f.entries[id] = now.Add(f.retention)
	} else {
		f.entries[id] = time.Time{}
	}
	return true
}

// Seen reports whether id was previously accepted and has not been evicted.
func (f *Filter) Seen(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	exp, ok := f.entries[id]
	if !ok {
		return false
	}
	if f.retention > 0 && time.Now().After(exp) {
		delete(f.entries, id)
		return false
	}
	return true
}

// Len returns the current number of recorded ids.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// reap periodically removes expired ids to bound memory usage, until Close.
func (f *Filter) reap() {
	ticker := time.NewTicker(f.retention / 2)
	defer ticker.Stop()
	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			now := time.Now()
			f.mu.Lock()
			for id, exp := range f.entries {
				if now.After(exp) {
					delete(f.entries, id)
				}
			}
			f.mu.Unlock()
		}
	}
}
