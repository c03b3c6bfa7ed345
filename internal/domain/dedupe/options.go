package dedupe

// Option applies a configuration option to the in-memory ledger.
type Option func(*inMemoryLedger)

// WithMaxSize sets the maximum number of digests kept in memory.
// If maxSize > 0 the oldest claim is evicted first; otherwise the ledger
// is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(l *inMemoryLedger) {
		l.maxSize = maxSize
	}
}

// WithLookup consults durable storage for digests missing from memory.
func WithLookup(lookup Lookup) Option {
	return func(l *inMemoryLedger) {
		l.lookup = lookup
	}
}
