package directory

import (
	"context"
	"slices"
	"sync"

	"cipherlink/internal/domain"
)

// MemoryBackend keeps bundles in process memory. State is lost on restart.
type MemoryBackend struct {
	mu      sync.Mutex
	bundles map[domain.AccountID]memoryEntry
}

type memoryEntry struct {
	bundle domain.PublicKeyBundle
	pool   []domain.OneTimePreKeyPublic
	next   uint64
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{bundles: make(map[domain.AccountID]memoryEntry)}
}

func (m *MemoryBackend) Publish(_ context.Context, account domain.AccountID, bundle domain.PublicKeyBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.bundles[account]
	var prev *domain.PublicKeyBundle
	if ok {
		prev = &e.bundle
	}
	fresh, replace, next := poolUpdate(prev, e.next, bundle)
	if replace {
		e.pool = nil
	}
	m.bundles[account] = memoryEntry{
		bundle: baseBundle(bundle),
		pool:   append(slices.Clone(e.pool), fresh...),
		next:   next,
	}
	return nil
}

func (m *MemoryBackend) Fetch(_ context.Context, account domain.AccountID) (domain.PublicKeyBundle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.bundles[account]
	if !ok {
		return domain.PublicKeyBundle{}, false, nil
	}
	out := e.bundle
	if len(e.pool) > 0 {
		opk := e.pool[0]
		out.OneTimePreKey = &opk
		e.pool = e.pool[1:]
		m.bundles[account] = e
	}
	return out, true, nil
}

// Remaining reports how many one-time pre-keys are left for account.
func (m *MemoryBackend) Remaining(account domain.AccountID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bundles[account].pool)
}

var _ Backend = (*MemoryBackend)(nil)
