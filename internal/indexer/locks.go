package indexer

import "sync"

// sourceLocks hands out one mutex per source. Entries live only while a
// writer holds or waits for them, so the map stays as large as the number of
// sources currently being written.
type sourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sourceLock
}

type sourceLock struct {
	mu   sync.Mutex
	refs int // Holders plus waiters; guarded by sourceLocks.mu
}

// lock blocks until source is free and returns its unlock function.
func (l *sourceLocks) lock(source string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sourceLock)
	}
	sl, ok := l.locks[source]
	if !ok {
		sl = &sourceLock{}
		l.locks[source] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()

		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, source)
		}
		l.mu.Unlock()
	}
}

// len returns the number of sources with a holder or waiter.
func (l *sourceLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
