package rpc

import (
	"errors"
	"sync"
	"time"
)

// ErrConflictingDuplicate is returned when a request_id is replayed with a
// different request payload than the one first seen for it (spec.md §4.8:
// "failing conflicting duplicates").
var ErrConflictingDuplicate = errors.New("rpc: request_id reused with a different request")

type dedupEntry struct {
	fingerprint string
	resp        Response
	expiresAt   time.Time
}

// Dedup is root's request_id dedup window: an in-memory, bounded-by-time
// map from RequestID to the Response it previously produced. It is not
// backed by pkg/store — a restart or upgrade clears it, which only widens
// the (already TTL-bounded) window in which a retried request might be
// re-executed rather than deduplicated, never the reverse.
//
// The window for a given entry is max(ttlSeconds, minWindowSeconds); the
// dedup contract requires a window of at least ttl_seconds, never less.
type Dedup struct {
	mu            sync.Mutex
	entries       map[RequestID]dedupEntry
	minWindowSecs int64
}

// NewDedup constructs an empty Dedup with the given minimum window.
func NewDedup(minWindowSecs int64) *Dedup {
	return &Dedup{entries: make(map[RequestID]dedupEntry), minWindowSecs: minWindowSecs}
}

// Check looks up id. If unseen, it records fingerprint (an opaque digest
// of the request payload, used only for conflict detection) and returns
// (Response{}, false, nil): the caller should execute the request and call
// Record with the result. If id was seen with the same fingerprint, it
// returns the cached response and true. If seen with a different
// fingerprint, it returns ErrConflictingDuplicate.
func (d *Dedup) Check(now time.Time, id RequestID, fingerprint string) (Response, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictLocked(now)
	entry, ok := d.entries[id]
	if !ok {
		return Response{}, false, nil
	}
	if entry.fingerprint != fingerprint {
		return Response{}, false, ErrConflictingDuplicate
	}
	return entry.resp, true, nil
}

// Record stores resp as the outcome for id, observed at now with a window
// of at least ttlSeconds (widened to minWindowSecs if larger).
func (d *Dedup) Record(now time.Time, id RequestID, fingerprint string, ttlSeconds int64, resp Response) {
	window := ttlSeconds
	if d.minWindowSecs > window {
		window = d.minWindowSecs
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[id] = dedupEntry{
		fingerprint: fingerprint,
		resp:        resp,
		expiresAt:   now.Add(time.Duration(window) * time.Second),
	}
}

// evictLocked drops every entry whose window has elapsed as of now. Called
// under d.mu.
func (d *Dedup) evictLocked(now time.Time) {
	for id, entry := range d.entries {
		if now.After(entry.expiresAt) {
			delete(d.entries, id)
		}
	}
}

// Len reports the number of live (unevicted as of the last Check/Record)
// entries, for tests and metrics.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
