package dedupe

import "sync"

// Memo is the per-run read cache. The first fetch of a key populates it;
// later reads of the same key within the run are served from the memo and
// counted as cache hits. A Memo is private to one batch run and is never
// shared across runs.
//
// Only successful results are memoized; failed reads go through the retry
// path every time.
type Memo struct {
	mu      sync.RWMutex
	entries map[string]any
	hits    int
}

// NewMemo creates an empty memo.
func NewMemo() *Memo {
	return &Memo{entries: make(map[string]any)}
}

// Get returns the memoized value for key and records a hit when present.
func (m *Memo) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.entries[key]
	if ok {
		m.hits++
	}
	return value, ok
}

// Put stores a successful read result under key.
func (m *Memo) Put(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
}

// Hits returns how many lookups were served from the memo.
func (m *Memo) Hits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.hits
}

// Len returns the number of memoized entries.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Clear empties the memo. Called at run end.
func (m *Memo) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]any)
	m.hits = 0
}
