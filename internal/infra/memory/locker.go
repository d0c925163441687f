package memory

import (
	"context"
	"sync"
)

// Locker is an in-process keyed mutex implementing app.SubmissionLocker.
// Entries are created on first use and dropped once nobody holds or waits on them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyedLock)}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	entry := l.getOrCreate(key)

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.deleteIfIdle(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.deleteIfIdle(key)
		})
	}, nil
}

func (l *Locker) getOrCreate(key string) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *Locker) deleteIfIdle(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}

// Len reports how many keys are currently tracked.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
