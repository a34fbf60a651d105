package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"cipherlink/internal/domain"
	"cipherlink/internal/services/keygen"
	"cipherlink/internal/store"
)

// SessionStoreSuite runs the same contract against every backend.
type SessionStoreSuite struct {
	suite.Suite
	open  func(t *testing.T) domain.SessionStore
	store domain.SessionStore
}

func (s *SessionStoreSuite) SetupTest() {
	s.store = s.open(s.T())
}

func (s *SessionStoreSuite) bundle(n int) domain.StoredPrivateKeyBundle {
	b, err := keygen.New(nil).GeneratePrivateBundle(n)
	s.Require().NoError(err)
	return b
}

func (s *SessionStoreSuite) TestLoadMissing() {
	_, ok, err := s.store.LoadPrivateBundle("nobody")
	s.Require().NoError(err)
	s.False(ok)

	_, ok, err = s.store.LoadSessionState("nobody", "bob")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *SessionStoreSuite) TestPrivateBundleRoundTrip() {
	b := s.bundle(3)
	s.Require().NoError(s.store.SavePrivateBundle("alice", b))

	got, ok, err := s.store.LoadPrivateBundle("alice")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(b, got)
}

func (s *SessionStoreSuite) TestSaveBundleOverwrites() {
	s.Require().NoError(s.store.SavePrivateBundle("alice", s.bundle(1)))
	second := s.bundle(2)
	s.Require().NoError(s.store.SavePrivateBundle("alice", second))

	got, _, err := s.store.LoadPrivateBundle("alice")
	s.Require().NoError(err)
	s.Equal(second, got)
}

func (s *SessionStoreSuite) TestSessionStateOverwrite() {
	st1 := domain.SessionState{ChainKey: domain.ChainKey{1}, Version: 1}
	st2 := domain.SessionState{ChainKey: domain.ChainKey{2}, Version: 2}

	s.Require().NoError(s.store.SaveSessionState("alice", "bob", st1))
	s.Require().NoError(s.store.SaveSessionState("alice", "carol", st1))
	s.Require().NoError(s.store.SaveSessionState("alice", "bob", st2))

	got, ok, err := s.store.LoadSessionState("alice", "bob")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(st2, got)

	got, ok, err = s.store.LoadSessionState("alice", "carol")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(st1, got)

	_, ok, err = s.store.LoadSessionState("bob", "alice")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *SessionStoreSuite) TestRemoveOneTimePreKeyIdempotent() {
	b := s.bundle(3)
	s.Require().NoError(s.store.SavePrivateBundle("alice", b))

	s.Require().NoError(s.store.RemoveOneTimePreKey("alice", 1))
	s.Require().NoError(s.store.RemoveOneTimePreKey("alice", 1))
	s.Require().NoError(s.store.RemoveOneTimePreKey("alice", 99))
	s.Require().NoError(s.store.RemoveOneTimePreKey("nobody", 0))

	got, ok, err := s.store.LoadPrivateBundle("alice")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Len(got.OneTimePreKeys, 2)
	s.Equal(domain.OneTimePreKeyID(0), got.OneTimePreKeys[0].ID)
	s.Equal(domain.OneTimePreKeyID(2), got.OneTimePreKeys[1].ID)
	s.Equal(b.OneTimePreKeys[2].Priv, got.OneTimePreKeys[1].Priv)
	s.Equal(b.Identity, got.Identity)
}

func (s *SessionStoreSuite) TestClearAll() {
	s.Require().NoError(s.store.SavePrivateBundle("alice", s.bundle(2)))
	s.Require().NoError(s.store.SaveSessionState("alice", "bob", domain.SessionState{ChainKey: domain.ChainKey{7}, Version: 4}))
	s.Require().NoError(s.store.SavePrivateBundle("bob", s.bundle(1)))
	s.Require().NoError(s.store.SaveSessionState("bob", "alice", domain.SessionState{ChainKey: domain.ChainKey{7}, Version: 4}))

	s.Require().NoError(s.store.ClearAll("alice"))
	s.Require().NoError(s.store.ClearAll("alice"))

	_, ok, err := s.store.LoadPrivateBundle("alice")
	s.Require().NoError(err)
	s.False(ok)
	_, ok, err = s.store.LoadSessionState("alice", "bob")
	s.Require().NoError(err)
	s.False(ok)

	// Other accounts are untouched.
	_, ok, err = s.store.LoadPrivateBundle("bob")
	s.Require().NoError(err)
	s.True(ok)
	_, ok, err = s.store.LoadSessionState("bob", "alice")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *SessionStoreSuite) TestLoadedBundleIsIndependentCopy() {
	s.Require().NoError(s.store.SavePrivateBundle("alice", s.bundle(2)))

	got, _, err := s.store.LoadPrivateBundle("alice")
	s.Require().NoError(err)
	want := got.Clone()
	got.Wipe()

	again, _, err := s.store.LoadPrivateBundle("alice")
	s.Require().NoError(err)
	s.Equal(want, again)
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{open: func(*testing.T) domain.SessionStore {
		return store.NewMemoryStore()
	}})
}

func TestFileStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{open: func(t *testing.T) domain.SessionStore {
		return store.NewFileStore(t.TempDir())
	}})
}

func TestFileStoreSealed(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{open: func(t *testing.T) domain.SessionStore {
		return store.NewFileStore(t.TempDir(), store.WithPassphrase("correct horse"), store.WithScryptCost(1<<10, 8, 1))
	}})
}

func TestBadgerStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{open: func(t *testing.T) domain.SessionStore {
		st, err := store.OpenBadgerStore(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		return st
	}})
}

func TestFileStore_WrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	b, err := keygen.New(nil).GeneratePrivateBundle(1)
	require.NoError(t, err)

	sealed := store.NewFileStore(dir, store.WithPassphrase("right"), store.WithScryptCost(1<<10, 8, 1))
	require.NoError(t, sealed.SavePrivateBundle("alice", b))

	_, _, err = store.NewFileStore(dir, store.WithPassphrase("wrong")).LoadPrivateBundle("alice")
	require.ErrorIs(t, err, store.ErrWrongPassphrase)

	_, _, err = store.NewFileStore(dir).LoadPrivateBundle("alice")
	require.ErrorIs(t, err, store.ErrPassphraseRequired)
}

func TestFileStore_SealedFileHidesKeys(t *testing.T) {
	dir := t.TempDir()
	b, err := keygen.New(nil).GeneratePrivateBundle(0)
	require.NoError(t, err)

	fs := store.NewFileStore(dir, store.WithPassphrase("pw"), store.WithScryptCost(1<<10, 8, 1))
	require.NoError(t, fs.SavePrivateBundle("alice", b))

	matches, err := filepath.Glob(filepath.Join(dir, "*", "keys.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.NotContains(t, string(raw), "xpriv")
}

func TestFileStore_ClearAllRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	fs := store.NewFileStore(dir)
	require.NoError(t, fs.SaveSessionState("alice", "bob", domain.SessionState{Version: 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, fs.ClearAll("alice"))
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFileStore_AccountIDsAreFilesystemSafe(t *testing.T) {
	dir := t.TempDir()
	fs := store.NewFileStore(dir)
	require.NoError(t, fs.SaveSessionState("../escape", "bob", domain.SessionState{Version: 1}))

	st, ok, err := fs.LoadSessionState("../escape", "bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), st.Version)

	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape"))
	require.True(t, os.IsNotExist(err))
}
