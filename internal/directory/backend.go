package directory

import (
	"context"

	"cipherlink/internal/domain"
)

// Backend stores published bundles for the directory server.
type Backend interface {
	// Publish stores account's bundle. A new identity key starts a fresh
	// pool of one-time pre-keys; under the same identity only ids the
	// directory has not accepted before are appended.
	Publish(ctx context.Context, account domain.AccountID, bundle domain.PublicKeyBundle) error
	// Fetch returns account's bundle carrying at most one one-time pre-key,
	// removed from the pool so it is never handed out twice.
	Fetch(ctx context.Context, account domain.AccountID) (domain.PublicKeyBundle, bool, error)
}

// baseBundle strips the one-time pre-key fields from b.
func baseBundle(b domain.PublicKeyBundle) domain.PublicKeyBundle {
	b.OneTimePreKeys = nil
	b.OneTimePreKey = nil
	return b
}

// poolUpdate works out what an upload adds to the pool. next is one past
// the highest id accepted so far under prev's identity. Ids below it were
// queued before and may already be handed out, so they are dropped.
func poolUpdate(
	prev *domain.PublicKeyBundle,
	next uint64,
	up domain.PublicKeyBundle,
) (fresh []domain.OneTimePreKeyPublic, replace bool, newNext uint64) {
	replace = prev == nil || prev.IdentityKey != up.IdentityKey
	if replace {
		next = 0
	}
	newNext = next
	for _, k := range up.OneTimePreKeys {
		id := uint64(k.KeyID)
		if id < next {
			continue
		}
		fresh = append(fresh, k)
		newNext = max(newNext, id+1)
	}
	return fresh, replace, newNext
}
