// Package lock serialises work on shared calendar resources.
//
// Keys are acquired in sorted order, so two callers locking overlapping key
// sets can never deadlock each other.
package lock

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// Locker acquires every key or none of them. The returned unlock releases all keys.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// ParticipantKey is the lock key guarding one user's busy-interval set
func ParticipantKey(userID int64) string {
	return "participant:" + strconv.FormatInt(userID, 10)
}

// ParticipantKeys returns keys for all given users
func ParticipantKeys(userIDs ...int64) []string {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, ParticipantKey(id))
	}
	return keys
}

func normalize(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}

// KeyedMutex is an in-process Locker with one mutex per key. Entries are
// dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	byKey map[string]*keyEntry
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{byKey: make(map[string]*keyEntry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)

	for i, k := range keys {
		if err := m.acquire(ctx, k); err != nil {
			m.releaseAll(keys[:i])
			return nil, err
		}
	}

	var once sync.Once
	return func() { once.Do(func() { m.releaseAll(keys) }) }, nil
}

func (m *KeyedMutex) acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	e, ok := m.byKey[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		m.byKey[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.release(key, false)
		return ctx.Err()
	}
}

func (m *KeyedMutex) releaseAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		m.release(keys[i], true)
	}
}

func (m *KeyedMutex) release(key string, held bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.byKey[key]
	if held {
		<-e.ch
	}
	e.refs--
	if e.refs == 0 {
		delete(m.byKey, key)
	}
}

// size is the number of live entries, for tests
func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byKey)
}
