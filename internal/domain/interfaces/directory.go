package interfaces

import (
	"context"

	domaintypes "cipherlink/internal/domain/types"
)

// DirectoryClient publishes and fetches public key bundles. It is the only
// component that crosses the network, so every call takes a context.
type DirectoryClient interface {
	// Publish uploads the bundle for account, replacing any previous one.
	Publish(ctx context.Context, account domaintypes.AccountID, bundle domaintypes.PublicKeyBundle) error
	// Fetch returns the bundle for account with at most one one-time pre-key.
	// A missing account yields domain.ErrPeerNotFound.
	Fetch(ctx context.Context, account domaintypes.AccountID) (domaintypes.PublicKeyBundle, error)
}
