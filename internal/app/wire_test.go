package app_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cipherlink/internal/app"
	"cipherlink/internal/directory"
	"cipherlink/internal/domain"
)

func newDirectory(t *testing.T) (string, *directory.MemoryBackend) {
	t.Helper()
	backend := directory.NewMemoryBackend()
	srv := httptest.NewServer(directory.NewServer(backend, zaptest.NewLogger(t)))
	t.Cleanup(srv.Close)
	return srv.URL, backend
}

func newDevice(t *testing.T, url, kind string) *app.Wire {
	t.Helper()
	cfg := app.DefaultConfig()
	cfg.Home = t.TempDir()
	cfg.DirectoryURL = url
	cfg.Store = kind
	cfg.PublishRetries = 0
	w, err := app.NewWire(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func chainKey(t *testing.T, w *app.Wire, account domain.AccountID, contact domain.ContactID) domain.SessionState {
	t.Helper()
	st, ok, err := w.Store.LoadSessionState(account, contact)
	require.NoError(t, err)
	require.True(t, ok)
	return st
}

func TestEndToEnd(t *testing.T) {
	for _, kind := range []string{app.StoreMemory, app.StoreFile, app.StoreBadger} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			url, backend := newDirectory(t)
			alice := newDevice(t, url, kind)
			bob := newDevice(t, url, kind)

			_, err := alice.Accounts.Register(ctx, "alice", 10)
			require.NoError(t, err)
			_, err = bob.Accounts.Register(ctx, "bob", 10)
			require.NoError(t, err)

			header, err := alice.Sessions.Initiate(ctx, "alice", "bob")
			require.NoError(t, err)
			require.NotNil(t, header.OneTimePreKeyID)
			assert.Equal(t, 9, backend.Remaining("bob"))

			require.NoError(t, bob.Sessions.Respond("bob", "alice", header))

			a := chainKey(t, alice, "alice", "bob")
			b := chainKey(t, bob, "bob", "alice")
			assert.Equal(t, a.ChainKey, b.ChainKey)

			priv, _, err := bob.Store.LoadPrivateBundle("bob")
			require.NoError(t, err)
			_, still := priv.OneTimePreKey(*header.OneTimePreKeyID)
			assert.False(t, still, "consumed one-time pre-key must be removed")

			ct, nonce, err := alice.Messages.Encrypt("alice", "bob", []byte("hello"))
			require.NoError(t, err)
			pt, err := bob.Messages.Decrypt("bob", "alice", ct, nonce)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(pt))

			a2 := chainKey(t, alice, "alice", "bob")
			b2 := chainKey(t, bob, "bob", "alice")
			assert.Equal(t, a2.ChainKey, b2.ChainKey)
			assert.NotEqual(t, a.ChainKey, a2.ChainKey)

			ct, nonce, err = bob.Messages.Encrypt("bob", "alice", []byte("hi alice"))
			require.NoError(t, err)
			pt, err = alice.Messages.Decrypt("alice", "bob", ct, nonce)
			require.NoError(t, err)
			assert.Equal(t, "hi alice", string(pt))
		})
	}
}

func TestEndToEnd_Envelopes(t *testing.T) {
	ctx := context.Background()
	url, _ := newDirectory(t)
	alice := newDevice(t, url, app.StoreMemory)
	bob := newDevice(t, url, app.StoreMemory)

	_, err := alice.Accounts.Register(ctx, "alice", 2)
	require.NoError(t, err)
	_, err = bob.Accounts.Register(ctx, "bob", 2)
	require.NoError(t, err)

	first, err := alice.Messages.Seal(ctx, "alice", "bob", []byte("one"))
	require.NoError(t, err)
	require.NotNil(t, first.Handshake)
	second, err := alice.Messages.Seal(ctx, "alice", "bob", []byte("two"))
	require.NoError(t, err)
	require.NotNil(t, second.Handshake, "header repeats until bob answers")
	assert.Equal(t, first.Handshake, second.Handshake)

	pt, err := bob.Messages.Open(ctx, "bob", first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(pt))
	pt, err = bob.Messages.Open(ctx, "bob", second)
	require.NoError(t, err)
	assert.Equal(t, "two", string(pt))

	reply, err := bob.Messages.Seal(ctx, "bob", "alice", []byte("three"))
	require.NoError(t, err)
	assert.Nil(t, reply.Handshake)
	pt, err = alice.Messages.Open(ctx, "alice", reply)
	require.NoError(t, err)
	assert.Equal(t, "three", string(pt))

	after, err := alice.Messages.Seal(ctx, "alice", "bob", []byte("four"))
	require.NoError(t, err)
	assert.Nil(t, after.Handshake)
	pt, err = bob.Messages.Open(ctx, "bob", after)
	require.NoError(t, err)
	assert.Equal(t, "four", string(pt))
}

func TestEndToEnd_ExplicitInitiateThenSeal(t *testing.T) {
	ctx := context.Background()
	url, _ := newDirectory(t)
	alice := newDevice(t, url, app.StoreMemory)
	bob := newDevice(t, url, app.StoreMemory)

	_, err := alice.Accounts.Register(ctx, "alice", 2)
	require.NoError(t, err)
	_, err = bob.Accounts.Register(ctx, "bob", 2)
	require.NoError(t, err)

	header, err := alice.Sessions.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)

	env, err := alice.Messages.Seal(ctx, "alice", "bob", []byte("hello"))
	require.NoError(t, err)
	require.NotNil(t, env.Handshake)
	assert.Equal(t, header, *env.Handshake)

	pt, err := bob.Messages.Open(ctx, "bob", env)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))
}

func TestEndToEnd_ReplenishNeverReissuesClaimedKey(t *testing.T) {
	ctx := context.Background()
	url, backend := newDirectory(t)
	alice := newDevice(t, url, app.StoreMemory)
	bob := newDevice(t, url, app.StoreMemory)
	carol := newDevice(t, url, app.StoreMemory)

	for _, reg := range []struct {
		w  *app.Wire
		id domain.AccountID
	}{{alice, "alice"}, {bob, "bob"}, {carol, "carol"}} {
		_, err := reg.w.Accounts.Register(ctx, reg.id, 2)
		require.NoError(t, err)
	}

	fromAlice, err := alice.Sessions.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NotNil(t, fromAlice.OneTimePreKeyID)

	require.NoError(t, bob.Accounts.Replenish(ctx, "bob", 1))
	assert.Equal(t, 2, backend.Remaining("bob"))

	fromCarol, err := carol.Sessions.Initiate(ctx, "carol", "bob")
	require.NoError(t, err)
	require.NotNil(t, fromCarol.OneTimePreKeyID)
	assert.NotEqual(t, *fromAlice.OneTimePreKeyID, *fromCarol.OneTimePreKeyID)

	require.NoError(t, bob.Sessions.Respond("bob", "alice", fromAlice))
	require.NoError(t, bob.Sessions.Respond("bob", "carol", fromCarol))
	assert.Equal(t,
		chainKey(t, alice, "alice", "bob").ChainKey,
		chainKey(t, bob, "bob", "alice").ChainKey)
	assert.Equal(t,
		chainKey(t, carol, "carol", "bob").ChainKey,
		chainKey(t, bob, "bob", "carol").ChainKey)
}

func TestEndToEnd_ExhaustedOneTimePreKeys(t *testing.T) {
	ctx := context.Background()
	url, _ := newDirectory(t)
	alice := newDevice(t, url, app.StoreMemory)
	bob := newDevice(t, url, app.StoreMemory)

	_, err := alice.Accounts.Register(ctx, "alice", 0)
	require.NoError(t, err)
	_, err = bob.Accounts.Register(ctx, "bob", 0)
	require.NoError(t, err)

	header, err := alice.Sessions.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Nil(t, header.OneTimePreKeyID)
	require.NoError(t, bob.Sessions.Respond("bob", "alice", header))

	assert.Equal(t,
		chainKey(t, alice, "alice", "bob").ChainKey,
		chainKey(t, bob, "bob", "alice").ChainKey)
}

func TestEndToEnd_Logout(t *testing.T) {
	ctx := context.Background()
	url, _ := newDirectory(t)
	alice := newDevice(t, url, app.StoreFile)
	bob := newDevice(t, url, app.StoreFile)

	_, err := alice.Accounts.Register(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = bob.Accounts.Register(ctx, "bob", 3)
	require.NoError(t, err)
	_, err = alice.Sessions.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)

	require.NoError(t, alice.Accounts.Logout("alice"))

	_, _, err = alice.Messages.Encrypt("alice", "bob", []byte("gone"))
	require.ErrorIs(t, err, domain.ErrNoSession)
	_, err = alice.Sessions.Initiate(ctx, "alice", "bob")
	require.ErrorIs(t, err, domain.ErrNoLocalKeys)
	_, err = alice.Accounts.Fingerprint("alice")
	require.ErrorIs(t, err, domain.ErrNoLocalKeys)
}

func TestEndToEnd_UnknownPeer(t *testing.T) {
	ctx := context.Background()
	url, _ := newDirectory(t)
	alice := newDevice(t, url, app.StoreMemory)

	_, err := alice.Accounts.Register(ctx, "alice", 1)
	require.NoError(t, err)
	_, err = alice.Sessions.Initiate(ctx, "alice", "nobody")
	require.ErrorIs(t, err, domain.ErrPeerNotFound)
}
