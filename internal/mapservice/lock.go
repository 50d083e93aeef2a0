package mapservice

import "sync"

// mapLocks serializes the read-modify-write sections of one map. Entries are
// dropped once no goroutine holds or waits for them.
type mapLocks struct {
	mu    sync.Mutex
	locks map[string]*mapLock
}

type mapLock struct {
	sync.Mutex
	refs int
}

// lock acquires the lock of id and returns its release func.
func (l *mapLocks) lock(id string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*mapLock)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &mapLock{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		if m.refs--; m.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
