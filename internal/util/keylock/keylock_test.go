package keylock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cipherlink/internal/util/keylock"
)

func TestLock_SerialisesSameKey(t *testing.T) {
	var m keylock.Locker
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("alice/bob")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, m.Len())
}

func TestLock_DistinctKeysIndependent(t *testing.T) {
	var m keylock.Locker
	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on distinct key blocked")
	}
}

func TestUnlock_Idempotent(t *testing.T) {
	var m keylock.Locker
	unlock := m.Lock("k")
	unlock()
	unlock()
	require.Equal(t, 0, m.Len())

	again := m.Lock("k")
	again()
}

func TestKey_NoCollisions(t *testing.T) {
	assert.NotEqual(t, keylock.Key("ab", "c"), keylock.Key("a", "bc"))
	assert.Equal(t, keylock.Key("a", "b"), keylock.Key("a", "b"))
}

func TestBundleAndContactKeysDisjoint(t *testing.T) {
	assert.NotEqual(t, keylock.BundleKey("alice"), keylock.ContactKey("alice", ""))
	assert.NotEqual(t, keylock.ContactKey("alice", "bob"), keylock.ContactKey("bob", "alice"))
}

func TestRLock_SharedUntilWriter(t *testing.T) {
	var m keylock.Locker
	r1 := m.RLock("acct")
	r2 := m.RLock("acct")

	acquired := make(chan struct{})
	go func() {
		unlock := m.Lock("acct")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("writer acquired while readers held the key")
	case <-time.After(50 * time.Millisecond):
	}

	r1()
	r2()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never acquired the key")
	}
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)
}

func TestAccountKeysDisjoint(t *testing.T) {
	keys := []string{
		keylock.AccountKey("alice"),
		keylock.BundleKey("alice"),
		keylock.HandshakeKey("alice", "bob"),
		keylock.ContactKey("alice", "bob"),
	}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			assert.NotEqual(t, keys[i], keys[j])
		}
	}
}
