package session

import (
	"context"
	"sync"
)

// keyedLocker hands out one mutex per key and forgets keys nobody waits on.
type keyedLocker[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*refLock
}

type refLock struct {
	ch   chan struct{}
	refs int
}

func newKeyedLocker[K comparable]() *keyedLocker[K] {
	return &keyedLocker[K]{locks: make(map[K]*refLock)}
}

func (k *keyedLocker[K]) Lock(ctx context.Context, key K) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			k.release(key, l)
		}, nil
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}
}

func (k *keyedLocker[K]) release(key K, l *refLock) {
	k.mu.Lock()
	defer k.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
