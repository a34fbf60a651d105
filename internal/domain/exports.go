package domain

import (
	interfaces "cipherlink/internal/domain/interfaces"
	types "cipherlink/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	AccountID              = types.AccountID
	ContactID              = types.ContactID
	Fingerprint            = types.Fingerprint
	SignedPreKeyID         = types.SignedPreKeyID
	OneTimePreKeyID        = types.OneTimePreKeyID
	X25519Public           = types.X25519Public
	X25519Private          = types.X25519Private
	Ed25519Public          = types.Ed25519Public
	Ed25519Private         = types.Ed25519Private
	Signature              = types.Signature
	ChainKey               = types.ChainKey
	MessageKey             = types.MessageKey
	Nonce                  = types.Nonce
	IdentityKeyPair        = types.IdentityKeyPair
	SignedPreKeyPair       = types.SignedPreKeyPair
	OneTimePreKeyPair      = types.OneTimePreKeyPair
	SignedPreKeyPublic     = types.SignedPreKeyPublic
	OneTimePreKeyPublic    = types.OneTimePreKeyPublic
	PublicKeyBundle        = types.PublicKeyBundle
	StoredPrivateKeyBundle = types.StoredPrivateKeyBundle
	SessionState           = types.SessionState
	HandshakeHeader        = types.HandshakeHeader
	Envelope               = types.Envelope
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	DirectoryClient = interfaces.DirectoryClient
	SessionStore    = interfaces.SessionStore
	AccountService  = interfaces.AccountService
	SessionService  = interfaces.SessionService
	MessageService  = interfaces.MessageService
)
