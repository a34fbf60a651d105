// Package keylock provides a read/write mutex per string key.
//
// Entries are reference counted and dropped when the last holder unlocks, so
// the map does not grow with the number of keys ever seen.
package keylock

import (
	"strings"
	"sync"
)

// Locker serialises work per key. The zero value is ready to use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.RWMutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock func.
// Calling unlock more than once is harmless.
func (l *Locker) Lock(key string) (unlock func()) {
	e := l.acquire(key)
	e.mu.Lock()
	return l.releaser(key, e, e.mu.Unlock)
}

// RLock takes key in shared mode. Holders of RLock run concurrently with
// each other and exclude Lock. A goroutine must not RLock a key it already
// holds, since a waiting Lock blocks new readers.
func (l *Locker) RLock(key string) (unlock func()) {
	e := l.acquire(key)
	e.mu.RLock()
	return l.releaser(key, e, e.mu.RUnlock)
}

func (l *Locker) acquire(key string) *entry {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*entry)
	}
	e, ok := l.locks[key]
	if !ok {
		e = &entry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()
	return e
}

func (l *Locker) releaser(key string, e *entry, release func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			release()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len reports how many keys are currently held or awaited.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// Key joins parts into a single lock key. Parts are separated by NUL so
// ("ab", "c") and ("a", "bc") never collide.
func Key(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// AccountKey gates everything stored for an account. Per-account work takes
// it shared; logout takes it exclusively. Lock order is HandshakeKey, then
// AccountKey, then ContactKey or BundleKey. AccountKey is never held across
// a wait on HandshakeKey.
func AccountKey(account string) string { return Key("account", account) }

// HandshakeKey serialises "initiate if no session yet" decisions for one
// conversation.
func HandshakeKey(account, contact string) string { return Key("handshake", account, contact) }

// BundleKey is the lock key guarding an account's private bundle.
func BundleKey(account string) string { return Key("bundle", account) }

// ContactKey is the lock key guarding one conversation's session state.
func ContactKey(account, contact string) string { return Key("session", account, contact) }
