package types

import "slices"

// SignedPreKeyPair is the full signed pre-key stored locally.
type SignedPreKeyPair struct {
	ID        SignedPreKeyID `json:"id"`
	Priv      X25519Private  `json:"priv"`
	Pub       X25519Public   `json:"pub"`
	Signature Signature      `json:"signature"`
}

// OneTimePreKeyPair is the full (private+public) one-time pre-key stored locally.
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID `json:"id"`
	Priv X25519Private   `json:"priv"`
	Pub  X25519Public    `json:"pub"`
}

// Public returns the publishable half.
func (p OneTimePreKeyPair) Public() OneTimePreKeyPublic {
	return OneTimePreKeyPublic{KeyID: p.ID, PublicKey: p.Pub}
}

// SignedPreKeyPublic is the signed pre-key as published to the directory.
type SignedPreKeyPublic struct {
	KeyID     SignedPreKeyID `json:"key_id"`
	PublicKey X25519Public   `json:"public_key"`
	Signature Signature      `json:"signature"`
}

// OneTimePreKeyPublic is only the public half (sent in bundles).
type OneTimePreKeyPublic struct {
	KeyID     OneTimePreKeyID `json:"key_id"`
	PublicKey X25519Public    `json:"public_key"`
}

// PublicKeyBundle is the public projection of an account's keys.
//
// Uploads carry the full OneTimePreKeys batch. Fetches from the directory
// carry at most one OneTimePreKey, which the directory will not hand out
// again.
type PublicKeyBundle struct {
	IdentityKey    X25519Public          `json:"identity_key"`
	SigningKey     Ed25519Public         `json:"signing_key"`
	SignedPreKey   SignedPreKeyPublic    `json:"signed_prekey"`
	OneTimePreKeys []OneTimePreKeyPublic `json:"onetime_prekeys,omitempty"`
	OneTimePreKey  *OneTimePreKeyPublic  `json:"onetime_prekey,omitempty"`
}

// StoredPrivateKeyBundle is the per-account private key material. Only the
// session store reads or writes it.
//
// One-time pre-keys with ids below PublishedOneTimePreKeyID have been
// uploaded already. The directory may have handed them out, so they are
// never uploaded again.
type StoredPrivateKeyBundle struct {
	Identity                 IdentityKeyPair     `json:"identity"`
	SignedPreKey             SignedPreKeyPair    `json:"signed_pre_key"`
	OneTimePreKeys           []OneTimePreKeyPair `json:"one_time_pre_keys"`
	NextOneTimePreKeyID      OneTimePreKeyID     `json:"next_one_time_pre_key_id"`
	PublishedOneTimePreKeyID OneTimePreKeyID     `json:"published_one_time_pre_key_id"`
}

// OneTimePreKey returns the unconsumed one-time pre-key with the given id.
func (b StoredPrivateKeyBundle) OneTimePreKey(id OneTimePreKeyID) (OneTimePreKeyPair, bool) {
	for _, k := range b.OneTimePreKeys {
		if k.ID == id {
			return k, true
		}
	}
	return OneTimePreKeyPair{}, false
}

// WithoutOneTimePreKey returns a copy of b that no longer holds id.
// The second result reports whether id was present.
func (b StoredPrivateKeyBundle) WithoutOneTimePreKey(id OneTimePreKeyID) (StoredPrivateKeyBundle, bool) {
	kept := make([]OneTimePreKeyPair, 0, len(b.OneTimePreKeys))
	found := false
	for _, k := range b.OneTimePreKeys {
		if k.ID == id {
			found = true
			continue
		}
		kept = append(kept, k)
	}
	b.OneTimePreKeys = kept
	return b, found
}

// Clone returns a deep copy so callers can wipe their copy independently.
func (b StoredPrivateKeyBundle) Clone() StoredPrivateKeyBundle {
	b.OneTimePreKeys = slices.Clone(b.OneTimePreKeys)
	return b
}

// Public builds the public form of the bundle with every unconsumed
// one-time pre-key.
func (b StoredPrivateKeyBundle) Public() PublicKeyBundle {
	return b.public(0)
}

// Upload builds the form sent to the directory: only one-time pre-keys that
// were never published are included.
func (b StoredPrivateKeyBundle) Upload() PublicKeyBundle {
	return b.public(b.PublishedOneTimePreKeyID)
}

func (b StoredPrivateKeyBundle) public(from OneTimePreKeyID) PublicKeyBundle {
	otks := make([]OneTimePreKeyPublic, 0, len(b.OneTimePreKeys))
	for _, k := range b.OneTimePreKeys {
		if k.ID < from {
			continue
		}
		otks = append(otks, k.Public())
	}
	return PublicKeyBundle{
		IdentityKey: b.Identity.XPub,
		SigningKey:  b.Identity.EdPub,
		SignedPreKey: SignedPreKeyPublic{
			KeyID:     b.SignedPreKey.ID,
			PublicKey: b.SignedPreKey.Pub,
			Signature: b.SignedPreKey.Signature,
		},
		OneTimePreKeys: otks,
	}
}

// Wipe zeroes every private key held by b.
func (b *StoredPrivateKeyBundle) Wipe() {
	b.Identity.Wipe()
	clear(b.SignedPreKey.Priv[:])
	for i := range b.OneTimePreKeys {
		clear(b.OneTimePreKeys[i].Priv[:])
	}
}
