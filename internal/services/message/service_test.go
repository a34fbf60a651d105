package message_test

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cipherlink/internal/domain"
	"cipherlink/internal/services/message"
	"cipherlink/internal/store"
	"cipherlink/internal/util/keylock"
)

// stubSessions records handshake calls and seeds a fixed chain key, standing
// in for a completed handshake.
type stubSessions struct {
	store     domain.SessionStore
	ck        domain.ChainKey
	mu        sync.Mutex
	initiated []domain.ContactID
	responded []domain.ContactID
}

func (s *stubSessions) Initiate(_ context.Context, account domain.AccountID, contact domain.ContactID) (domain.HandshakeHeader, error) {
	s.mu.Lock()
	s.initiated = append(s.initiated, contact)
	eph := domain.X25519Public{byte(len(s.initiated))}
	s.mu.Unlock()

	header := domain.HandshakeHeader{IdentityKey: domain.X25519Public{9}, EphemeralKey: eph}
	state := domain.SessionState{ChainKey: s.ck, Version: 1, Handshake: &header, Pending: true}
	if err := s.store.SaveSessionState(account, contact, state); err != nil {
		return domain.HandshakeHeader{}, err
	}
	return header, nil
}

func (s *stubSessions) Respond(account domain.AccountID, contact domain.ContactID, header domain.HandshakeHeader) error {
	s.mu.Lock()
	s.responded = append(s.responded, contact)
	s.mu.Unlock()
	return s.store.SaveSessionState(account, contact, domain.SessionState{ChainKey: s.ck, Version: 1, Handshake: &header})
}

type fixture struct {
	store    *store.MemoryStore
	sessions *stubSessions
	svc      *message.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	sessions := &stubSessions{store: st}
	_, err := rand.Read(sessions.ck[:])
	require.NoError(t, err)
	return &fixture{
		store:    st,
		sessions: sessions,
		svc:      message.New(st, sessions, &keylock.Locker{}, nil, 0, nil),
	}
}

// paired seeds both directions of an alice/bob session with the same key.
func (f *fixture) paired(t *testing.T) {
	t.Helper()
	state := domain.SessionState{ChainKey: f.sessions.ck, Version: 1}
	require.NoError(t, f.store.SaveSessionState("alice", "bob", state))
	require.NoError(t, f.store.SaveSessionState("bob", "alice", state))
}

func (f *fixture) state(t *testing.T, account domain.AccountID, contact domain.ContactID) domain.SessionState {
	t.Helper()
	st, ok, err := f.store.LoadSessionState(account, contact)
	require.NoError(t, err)
	require.True(t, ok)
	return st
}

func TestEncryptDecrypt_RoundTripAdvancesBothChains(t *testing.T) {
	f := newFixture(t)
	f.paired(t)

	for i, msg := range []string{"hello", "second", ""} {
		ct, nonce, err := f.svc.Encrypt("alice", "bob", []byte(msg))
		require.NoError(t, err)

		pt, err := f.svc.Decrypt("bob", "alice", ct, nonce)
		require.NoError(t, err)
		assert.Equal(t, msg, string(pt))

		a, b := f.state(t, "alice", "bob"), f.state(t, "bob", "alice")
		assert.Equal(t, a, b)
		assert.Equal(t, uint64(i+2), a.Version)
		assert.NotEqual(t, f.sessions.ck, a.ChainKey)
	}
}

func TestEncryptDecrypt_AlternatingDirections(t *testing.T) {
	f := newFixture(t)
	f.paired(t)

	ct, nonce, err := f.svc.Encrypt("alice", "bob", []byte("ping"))
	require.NoError(t, err)
	_, err = f.svc.Decrypt("bob", "alice", ct, nonce)
	require.NoError(t, err)

	ct, nonce, err = f.svc.Encrypt("bob", "alice", []byte("pong"))
	require.NoError(t, err)
	pt, err := f.svc.Decrypt("alice", "bob", ct, nonce)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(pt))
}

func TestEncrypt_NoSession(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Encrypt("alice", "bob", []byte("x"))
	require.ErrorIs(t, err, domain.ErrNoSession)

	_, err = f.svc.Decrypt("alice", "bob", []byte("x"), domain.Nonce{})
	require.ErrorIs(t, err, domain.ErrNoSession)
}

func TestDecrypt_TamperLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.paired(t)

	ct, nonce, err := f.svc.Encrypt("alice", "bob", []byte("hello"))
	require.NoError(t, err)
	before := f.state(t, "bob", "alice")

	tampered := append([]byte(nil), ct...)
	tampered[0] ^= 0x01
	_, err = f.svc.Decrypt("bob", "alice", tampered, nonce)
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Equal(t, before, f.state(t, "bob", "alice"))

	wrongNonce := nonce
	wrongNonce[23] ^= 0x01
	_, err = f.svc.Decrypt("bob", "alice", ct, wrongNonce)
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Equal(t, before, f.state(t, "bob", "alice"))

	// The untouched key still opens the genuine message.
	pt, err := f.svc.Decrypt("bob", "alice", ct, nonce)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))
}

func TestDecrypt_RepeatedFailuresReportDesync(t *testing.T) {
	f := newFixture(t)
	f.paired(t)

	ct, nonce, err := f.svc.Encrypt("alice", "bob", []byte("hello"))
	require.NoError(t, err)
	garbage := make([]byte, len(ct))

	for i := 1; i < message.DefaultMaxAuthFailures; i++ {
		_, err = f.svc.Decrypt("bob", "alice", garbage, nonce)
		require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
		require.NotErrorIs(t, err, domain.ErrDesynchronizedSession)
	}
	_, err = f.svc.Decrypt("bob", "alice", garbage, nonce)
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	require.ErrorIs(t, err, domain.ErrDesynchronizedSession)

	// A success resets the count.
	_, err = f.svc.Decrypt("bob", "alice", ct, nonce)
	require.NoError(t, err)
	ct, nonce, err = f.svc.Encrypt("alice", "bob", []byte("next"))
	require.NoError(t, err)
	_, err = f.svc.Decrypt("bob", "alice", garbage, nonce)
	require.NotErrorIs(t, err, domain.ErrDesynchronizedSession)
	_, err = f.svc.Decrypt("bob", "alice", ct, nonce)
	require.NoError(t, err)
}

func TestDecrypt_NewHandshakeResetsFailureCount(t *testing.T) {
	f := newFixture(t)
	f.paired(t)
	garbage := make([]byte, 40)

	for i := 0; i < message.DefaultMaxAuthFailures; i++ {
		_, err := f.svc.Decrypt("bob", "alice", garbage, domain.Nonce{})
		require.Error(t, err)
	}

	// Re-handshake: new state with a higher version.
	require.NoError(t, f.store.SaveSessionState("bob", "alice", domain.SessionState{ChainKey: domain.ChainKey{1}, Version: 5}))
	_, err := f.svc.Decrypt("bob", "alice", garbage, domain.Nonce{})
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	require.NotErrorIs(t, err, domain.ErrDesynchronizedSession)
}

func TestDecrypt_OutOfOrderFails(t *testing.T) {
	f := newFixture(t)
	f.paired(t)

	ct1, n1, err := f.svc.Encrypt("alice", "bob", []byte("one"))
	require.NoError(t, err)
	ct2, n2, err := f.svc.Encrypt("alice", "bob", []byte("two"))
	require.NoError(t, err)

	_, err = f.svc.Decrypt("bob", "alice", ct2, n2)
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)

	pt, err := f.svc.Decrypt("bob", "alice", ct1, n1)
	require.NoError(t, err)
	assert.Equal(t, "one", string(pt))
	pt, err = f.svc.Decrypt("bob", "alice", ct2, n2)
	require.NoError(t, err)
	assert.Equal(t, "two", string(pt))
}

func TestSealOpen_HandshakeUntilContactAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Seal(ctx, "alice", "bob", []byte("first"))
	require.NoError(t, err)
	require.NotNil(t, first.Handshake)
	assert.Equal(t, domain.AccountID("alice"), first.From)
	assert.Equal(t, domain.AccountID("bob"), first.To)

	second, err := f.svc.Seal(ctx, "alice", "bob", []byte("second"))
	require.NoError(t, err)
	require.NotNil(t, second.Handshake, "bob has not answered yet")
	assert.Equal(t, *first.Handshake, *second.Handshake)
	assert.Len(t, f.sessions.initiated, 1)

	pt, err := f.svc.Open(ctx, "bob", first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(pt))
	pt, err = f.svc.Open(ctx, "bob", second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(pt))
	assert.Len(t, f.sessions.responded, 1, "an accepted header is not accepted twice")

	reply, err := f.svc.Seal(ctx, "bob", "alice", []byte("reply"))
	require.NoError(t, err)
	assert.Nil(t, reply.Handshake)
	pt, err = f.svc.Open(ctx, "alice", reply)
	require.NoError(t, err)
	assert.Equal(t, "reply", string(pt))

	third, err := f.svc.Seal(ctx, "alice", "bob", []byte("third"))
	require.NoError(t, err)
	assert.Nil(t, third.Handshake)
	pt, err = f.svc.Open(ctx, "bob", third)
	require.NoError(t, err)
	assert.Equal(t, "third", string(pt))
}

func TestSeal_AfterExplicitInitiateCarriesHeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	header, err := f.sessions.Initiate(ctx, "alice", "bob")
	require.NoError(t, err)

	env, err := f.svc.Seal(ctx, "alice", "bob", []byte("hello"))
	require.NoError(t, err)
	require.NotNil(t, env.Handshake)
	assert.Equal(t, header, *env.Handshake)
	assert.Len(t, f.sessions.initiated, 1)

	pt, err := f.svc.Open(ctx, "bob", env)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))
}

func TestSeal_ConcurrentCallsInitiateOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Seal(ctx, "alice", "bob", []byte("hi"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.sessions.initiated, 1)
	assert.Equal(t, uint64(9), f.state(t, "alice", "bob").Version)
}

func TestOpen_WrongRecipient(t *testing.T) {
	f := newFixture(t)
	f.paired(t)
	env, err := f.svc.Seal(context.Background(), "alice", "bob", []byte("hi"))
	require.NoError(t, err)

	_, err = f.svc.Open(context.Background(), "carol", env)
	require.Error(t, err)
}

func TestOpen_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.Open(ctx, "bob", domain.Envelope{To: "bob"})
	require.ErrorIs(t, err, context.Canceled)
}
