package types

// AccountID identifies a registered account at the key directory.
type AccountID string

// String returns the string form of the account id.
func (a AccountID) String() string { return string(a) }

// ContactID identifies the peer of a conversation. It is the peer's
// AccountID as seen from the local account.
type ContactID string

// String returns the string form of the contact id.
func (c ContactID) String() string { return string(c) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// SignedPreKeyID identifies a signed pre-key within an account.
type SignedPreKeyID uint32

// OneTimePreKeyID identifies a one-time pre-key within an account. Ids form
// a dense sequence starting at zero.
type OneTimePreKeyID uint32
