package interfaces

import (
	"context"

	domaintypes "cipherlink/internal/domain/types"
)

// AccountService registers accounts and tears them down on logout.
type AccountService interface {
	Register(
		ctx context.Context,
		account domaintypes.AccountID,
		oneTimeCount int,
	) (domaintypes.PublicKeyBundle, error)
	Bundle(account domaintypes.AccountID) (domaintypes.PublicKeyBundle, error)
	Publish(ctx context.Context, account domaintypes.AccountID) error
	Fingerprint(account domaintypes.AccountID) (domaintypes.Fingerprint, error)
	Logout(account domaintypes.AccountID) error
}

// SessionService runs the handshake in both roles.
type SessionService interface {
	Initiate(
		ctx context.Context,
		account domaintypes.AccountID,
		contact domaintypes.ContactID,
	) (domaintypes.HandshakeHeader, error)
	Respond(
		account domaintypes.AccountID,
		contact domaintypes.ContactID,
		header domaintypes.HandshakeHeader,
	) error
}

// MessageService encrypts and decrypts with the symmetric ratchet.
type MessageService interface {
	Encrypt(
		account domaintypes.AccountID,
		contact domaintypes.ContactID,
		plaintext []byte,
	) ([]byte, domaintypes.Nonce, error)
	Decrypt(
		account domaintypes.AccountID,
		contact domaintypes.ContactID,
		ciphertext []byte,
		nonce domaintypes.Nonce,
	) ([]byte, error)
	Seal(
		ctx context.Context,
		from domaintypes.AccountID,
		to domaintypes.AccountID,
		plaintext []byte,
	) (domaintypes.Envelope, error)
	Open(ctx context.Context, me domaintypes.AccountID, envelope domaintypes.Envelope) ([]byte, error)
}
