package store

import (
	"sync"

	"cipherlink/internal/domain"
)

// MemoryStore keeps everything in process memory. It is used by tests and
// by the "memory" store setting for throwaway sessions.
type MemoryStore struct {
	mu       sync.Mutex
	bundles  map[domain.AccountID]domain.StoredPrivateKeyBundle
	sessions map[domain.AccountID]map[domain.ContactID]domain.SessionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bundles:  make(map[domain.AccountID]domain.StoredPrivateKeyBundle),
		sessions: make(map[domain.AccountID]map[domain.ContactID]domain.SessionState),
	}
}

func (s *MemoryStore) SavePrivateBundle(account domain.AccountID, bundle domain.StoredPrivateKeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.bundles[account]; ok {
		old.Wipe()
	}
	s.bundles[account] = bundle.Clone()
	return nil
}

func (s *MemoryStore) LoadPrivateBundle(account domain.AccountID) (domain.StoredPrivateKeyBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bundles[account]
	if !ok {
		return domain.StoredPrivateKeyBundle{}, false, nil
	}
	return b.Clone(), true, nil
}

func (s *MemoryStore) SaveSessionState(
	account domain.AccountID,
	contact domain.ContactID,
	state domain.SessionState,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.sessions[account]
	if !ok {
		m = make(map[domain.ContactID]domain.SessionState)
		s.sessions[account] = m
	}
	m[contact] = state
	return nil
}

func (s *MemoryStore) LoadSessionState(
	account domain.AccountID,
	contact domain.ContactID,
) (domain.SessionState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[account][contact]
	return st, ok, nil
}

func (s *MemoryStore) RemoveOneTimePreKey(account domain.AccountID, id domain.OneTimePreKeyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bundles[account]
	if !ok {
		return nil
	}
	s.bundles[account] = removeOneTimePreKey(b, id)
	return nil
}

func (s *MemoryStore) ClearAll(account domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.bundles[account]; ok {
		b.Wipe()
		delete(s.bundles, account)
	}
	clear(s.sessions[account])
	delete(s.sessions, account)
	return nil
}

// removeOneTimePreKey drops id from b, wiping the removed private key in the
// original backing array.
func removeOneTimePreKey(b domain.StoredPrivateKeyBundle, id domain.OneTimePreKeyID) domain.StoredPrivateKeyBundle {
	out, found := b.WithoutOneTimePreKey(id)
	if found {
		for i := range b.OneTimePreKeys {
			if b.OneTimePreKeys[i].ID == id {
				clear(b.OneTimePreKeys[i].Priv[:])
			}
		}
	}
	return out
}

// Compile-time assertion that MemoryStore implements domain.SessionStore.
var _ domain.SessionStore = (*MemoryStore)(nil)
