package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"cipherlink/internal/domain"
	"cipherlink/internal/util/memzero"
)

const (
	keysFile     = "keys.json"
	sessionsFile = "sessions.json"
)

// ErrPassphraseRequired is returned when a sealed key file is read by a
// store opened without a passphrase.
var ErrPassphraseRequired = errors.New("key file is sealed; passphrase required")

// FileStore persists each account under its own directory below root:
//
//	<root>/<hex(account)>/keys.json      private bundle, sealed when a passphrase is set
//	<root>/<hex(account)>/sessions.json  map of contact to session state
//
// Every write replaces the file atomically via temp file and rename.
type FileStore struct {
	root       string
	passphrase string
	params     scryptParams

	mu sync.Mutex
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithPassphrase seals keys.json with a key derived from passphrase.
func WithPassphrase(passphrase string) FileOption {
	return func(s *FileStore) { s.passphrase = passphrase }
}

// WithScryptCost overrides the scrypt parameters used when sealing.
func WithScryptCost(n, r, p int) FileOption {
	return func(s *FileStore) { s.params = scryptParams{N: n, R: r, P: p} }
}

func NewFileStore(root string, opts ...FileOption) *FileStore {
	s := &FileStore{root: root, params: defaultScryptParams()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *FileStore) accountDir(account domain.AccountID) string {
	return filepath.Join(s.root, hex.EncodeToString([]byte(account)))
}

// ---------- Private bundle ----------

func (s *FileStore) SavePrivateBundle(account domain.AccountID, bundle domain.StoredPrivateKeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeBundle(account, bundle)
}

func (s *FileStore) LoadPrivateBundle(account domain.AccountID) (domain.StoredPrivateKeyBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readBundle(account)
}

func (s *FileStore) RemoveOneTimePreKey(account domain.AccountID, id domain.OneTimePreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok, err := s.readBundle(account)
	if err != nil || !ok {
		return err
	}
	defer b.Wipe()
	if _, present := b.OneTimePreKey(id); !present {
		return nil
	}
	out := removeOneTimePreKey(b, id)
	defer out.Wipe()
	return s.writeBundle(account, out)
}

func (s *FileStore) writeBundle(account domain.AccountID, bundle domain.StoredPrivateKeyBundle) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)

	out := raw
	if s.passphrase != "" {
		out, err = seal(s.passphrase, raw, s.params)
		if err != nil {
			return fmt.Errorf("seal keys: %w", err)
		}
	}
	return writeFile(filepath.Join(s.accountDir(account), keysFile), out)
}

func (s *FileStore) readBundle(account domain.AccountID) (domain.StoredPrivateKeyBundle, bool, error) {
	b, err := readFile(filepath.Join(s.accountDir(account), keysFile))
	if err != nil || b == nil {
		return domain.StoredPrivateKeyBundle{}, false, err
	}
	defer memzero.Zero(b)

	raw := b
	if isSealed(b) {
		if s.passphrase == "" {
			return domain.StoredPrivateKeyBundle{}, false, ErrPassphraseRequired
		}
		raw, err = unseal(s.passphrase, b)
		if err != nil {
			return domain.StoredPrivateKeyBundle{}, false, err
		}
		defer memzero.Zero(raw)
	}

	var bundle domain.StoredPrivateKeyBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return domain.StoredPrivateKeyBundle{}, false, fmt.Errorf("decode keys: %w", err)
	}
	return bundle, true, nil
}

// isSealed reports whether b is a passphrase blob rather than a plain bundle.
func isSealed(b []byte) bool {
	var head struct {
		V      int    `json:"v"`
		Cipher []byte `json:"cipher"`
	}
	return json.Unmarshal(b, &head) == nil && head.V > 0 && head.Cipher != nil
}

// ---------- Session state ----------

func (s *FileStore) SaveSessionState(
	account domain.AccountID,
	contact domain.ContactID,
	state domain.SessionState,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.accountDir(account), sessionsFile)
	m := map[domain.ContactID]domain.SessionState{}
	if _, err := readJSON(path, &m); err != nil {
		return err
	}
	m[contact] = state
	return writeJSON(path, m)
}

func (s *FileStore) LoadSessionState(
	account domain.AccountID,
	contact domain.ContactID,
) (domain.SessionState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := map[domain.ContactID]domain.SessionState{}
	if _, err := readJSON(filepath.Join(s.accountDir(account), sessionsFile), &m); err != nil {
		return domain.SessionState{}, false, err
	}
	st, ok := m[contact]
	return st, ok, nil
}

// ---------- Logout ----------

// ClearAll zero-fills and removes the account directory.
func (s *FileStore) ClearAll(account domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return shredDir(s.accountDir(account))
}

// Compile-time assertion that FileStore implements domain.SessionStore.
var _ domain.SessionStore = (*FileStore)(nil)
