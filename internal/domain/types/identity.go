package types

// IdentityKeyPair holds the long-term X25519 key and the Ed25519 key derived
// from it. The X25519 private scalar doubles as the Ed25519 seed, so XPriv is
// the only independent secret.
type IdentityKeyPair struct {
	XPub   X25519Public   `json:"xpub"`
	XPriv  X25519Private  `json:"xpriv"`
	EdPub  Ed25519Public  `json:"edpub"`
	EdPriv Ed25519Private `json:"edpriv"`
}

// Wipe zeroes the private halves.
func (id *IdentityKeyPair) Wipe() {
	clear(id.XPriv[:])
	clear(id.EdPriv[:])
}
