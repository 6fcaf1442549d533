package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

func clubKey(id string) string    { return "club:" + id }
func studentKey(id string) string { return "student:" + id }

// keyLocks serializes operations per club and per student.
// A caller locks its whole key set at once; keys are taken in sorted order
// so two operations over overlapping sets cannot deadlock.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// acquire locks every key or none. It gives up when ctx is done.
func (k *keyLocks) acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = sortedUnique(keys)
	held := make([]string, 0, len(keys))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			k.unlock(held[i])
		}
	}

	for _, key := range keys {
		l := k.ref(key)
		select {
		case l.sem <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			k.unref(key)
			release()
			return nil, fmt.Errorf("waiting for lock %s: %w", key, ErrUnavailable)
		}
	}
	return release, nil
}

func (k *keyLocks) ref(key string) *keyLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *keyLocks) unref(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l := k.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *keyLocks) unlock(key string) {
	k.mu.Lock()
	l := k.locks[key]
	k.mu.Unlock()
	<-l.sem
	k.unref(key)
}

// size reports the number of live lock entries.
func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func sortedUnique(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	n := 0
	for i, key := range out {
		if i > 0 && key == out[n-1] {
			continue
		}
		out[n] = key
		n++
	}
	return out[:n]
}
