// internal/segment/cache.go
package segment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coursekit/reach/internal/types"
)

/*
 * Cached preview of saved segments.
 *
 * Previews of *saved* segments (segment list screen, campaign review) are
 * re-requested far more often than the underlying population changes, so
 * the Previewer memoizes reach results per (segment, limit, offset) for a
 * short TTL. Live builder previews never pass through here; an in-flight
 * edit must always hit the store.
 *
 * Error envelopes are never cached: a transient storage failure should not
 * pin "0 matches" on a segment for the full TTL.
 */

// Previewer serves reach previews for saved segments with TTL memoization.
type Previewer struct {
	store *Store
	svc   *Service
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]previewEntry
}

type previewEntry struct {
	result    ReachResult
	segmentID types.SegmentID
	expires   time.Time
}

// NewPreviewer creates a previewer over the store and reach facade.
// A non-positive ttl disables caching entirely.
func NewPreviewer(store *Store, svc *Service, ttl time.Duration) *Previewer {
	return &Previewer{
		store:   store,
		svc:     svc,
		ttl:     ttl,
		entries: make(map[string]previewEntry),
	}
}

// Preview returns the reach envelope for a saved segment, from cache when
// fresh. Unknown segments return types.ErrSegmentNotFound.
func (p *Previewer) Preview(ctx context.Context, id types.SegmentID, limit, offset int) (ReachResult, error) {
	key := previewKey(id, limit, offset)

	if p.ttl > 0 {
		p.mu.Lock()
		if e, ok := p.entries[key]; ok && time.Now().Before(e.expires) {
			p.mu.Unlock()
			return e.result, nil
		}
		p.mu.Unlock()
	}

	seg, err := p.store.Get(ctx, id)
	if err != nil {
		return ReachResult{}, err
	}

	result := p.svc.Reach(ctx, seg.Rules, limit, offset)
	if p.ttl > 0 && result.Err == "" {
		p.mu.Lock()
		p.entries[key] = previewEntry{
			result:    result,
			segmentID: id,
			expires:   time.Now().Add(p.ttl),
		}
		p.evictExpiredLocked()
		p.mu.Unlock()
	}
	return result, nil
}

// Invalidate drops all cached windows for a segment. Called after the
// segment's rules change or the segment is deleted.
func (p *Previewer) Invalidate(id types.SegmentID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, e := range p.entries {
		if e.segmentID == id {
			delete(p.entries, key)
		}
	}
}

// evictExpiredLocked removes stale windows opportunistically on insert, so
// the map stays proportional to the working set without a background timer.
func (p *Previewer) evictExpiredLocked() {
	now := time.Now()
	for key, e := range p.entries {
		if now.After(e.expires) {
			delete(p.entries, key)
		}
	}
}

func previewKey(id types.SegmentID, limit, offset int) string {
	return fmt.Sprintf("%s:%d:%d", id, limit, offset)
}
