// Package dedupe remembers client submission ids so a retried run
// submission is stored at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"

	"github.com/gaeliam100/unravel-sql-game-back/pkg/metrics"
)

const defaultMaxSize = 100_000

// Deduper records seen submission keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a submission whose append failed can be retried.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key scopes a client submission id to the player that sent it.
func Key(playerID, submissionID string) string {
	return playerID + "/" + submissionID
}

// inMemoryDeduper keeps up to maxSize keys and evicts the oldest first.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = newest
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		oldest := d.order.Back()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[key] = d.order.PushFront(key)
	metrics.UpdateDedupeEntries(int64(len(d.seen)))
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, exists := d.seen[key]; exists {
		d.order.Remove(el)
		delete(d.seen, key)
		metrics.UpdateDedupeEntries(int64(len(d.seen)))
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
