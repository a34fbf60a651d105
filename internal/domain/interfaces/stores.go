package interfaces

import domaintypes "cipherlink/internal/domain/types"

// SessionStore persists private key material and per-contact ratchet state.
// Every method is atomic with respect to the account/contact it addresses.
type SessionStore interface {
	SavePrivateBundle(account domaintypes.AccountID, bundle domaintypes.StoredPrivateKeyBundle) error
	LoadPrivateBundle(account domaintypes.AccountID) (domaintypes.StoredPrivateKeyBundle, bool, error)

	SaveSessionState(
		account domaintypes.AccountID,
		contact domaintypes.ContactID,
		state domaintypes.SessionState,
	) error
	LoadSessionState(
		account domaintypes.AccountID,
		contact domaintypes.ContactID,
	) (domaintypes.SessionState, bool, error)

	// RemoveOneTimePreKey deletes a consumed one-time pre-key. Removing an
	// unknown id is a no-op.
	RemoveOneTimePreKey(account domaintypes.AccountID, id domaintypes.OneTimePreKeyID) error

	// ClearAll removes every private key and chain key held for account.
	ClearAll(account domaintypes.AccountID) error
}
