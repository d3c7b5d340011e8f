package queue

import "sync"

// itemLocks serializes operator actions per item id. TryLock never
// blocks: the loser of a race gets false and surfaces ErrConflict
// instead of waiting behind an in-flight gateway call.
type itemLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newItemLocks() *itemLocks {
	return &itemLocks{held: make(map[string]struct{})}
}

func (l *itemLocks) TryLock(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[id]; taken {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

func (l *itemLocks) Unlock(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}
