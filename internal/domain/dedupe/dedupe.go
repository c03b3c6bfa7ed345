// Package dedupe keeps the ingestion ledger that lets each log be ingested
// at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Ledger maps log digests to the report that owns them.
type Ledger interface {
	// Claim records reportID as the owner of digest unless the digest is
	// already owned. It returns the owner and whether this call claimed it.
	Claim(ctx context.Context, digest, reportID string) (owner string, claimed bool)

	// Release drops a claim so the digest can be submitted again. It is
	// used when a claimed log could not be queued.
	Release(ctx context.Context, digest string)

	Size() int64
}

// Lookup finds the owner of a digest in durable storage. It lets a ledger
// recognize logs ingested before a restart.
type Lookup interface {
	OwnerOf(ctx context.Context, digest string) (reportID string, ok bool)
}

type entry struct {
	digest string
	owner  string
}

// inMemoryLedger keeps claims in insertion order. When bounded, the oldest
// claim is evicted first.
type inMemoryLedger struct {
	mu      sync.Mutex
	owners  map[string]*list.Element
	order   *list.List
	maxSize int // 0 or negative = unbounded
	size    atomic.Int64
	lookup  Lookup
}

// NewInMemoryLedger creates a ledger with configuration options.
func NewInMemoryLedger(opts ...Option) Ledger {
	l := &inMemoryLedger{
		maxSize: 10_000,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.owners = make(map[string]*list.Element)
	l.order = list.New()
	return l
}

func (l *inMemoryLedger) Claim(ctx context.Context, digest, reportID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.owners[digest]; ok {
		return el.Value.(*entry).owner, false
	}
	if l.lookup != nil {
		if owner, ok := l.lookup.OwnerOf(ctx, digest); ok {
			l.record(digest, owner)
			return owner, false
		}
	}
	l.record(digest, reportID)
	return reportID, true
}

func (l *inMemoryLedger) Release(_ context.Context, digest string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.owners[digest]; ok {
		l.order.Remove(el)
		delete(l.owners, digest)
		l.size.Add(-1)
	}
}

func (l *inMemoryLedger) Size() int64 {
	return l.size.Load()
}

// record must be called with l.mu held.
func (l *inMemoryLedger) record(digest, owner string) {
	if l.maxSize > 0 && len(l.owners) >= l.maxSize {
		l.evictOldest()
	}
	l.owners[digest] = l.order.PushBack(&entry{digest: digest, owner: owner})
	l.size.Add(1)
}

func (l *inMemoryLedger) evictOldest() {
	el := l.order.Front()
	if el == nil {
		return
	}
	l.order.Remove(el)
	delete(l.owners, el.Value.(*entry).digest)
	l.size.Add(-1)
}
