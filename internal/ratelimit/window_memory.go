package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryWindow is the in-process fallback when Redis is not configured, and
// the test double. Counts are per instance.
type MemoryWindow struct {
	mu     sync.Mutex
	counts map[string]int64
	now    func() time.Time
}

// NewMemoryWindow constructs an in-process window counter.
func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{counts: make(map[string]int64), now: time.Now}
}

func (w *MemoryWindow) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	bucket := windowKey(key, window, w.now())
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts[bucket]++
	count := w.counts[bucket]
	// Stale buckets accumulate one entry per key per window; drop the map
	// once it grows rather than tracking expiries.
	if len(w.counts) > 4096 {
		w.counts = map[string]int64{bucket: count}
	}
	return count, nil
}
