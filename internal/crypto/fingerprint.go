package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"cipherlink/internal/domain"
)

// Fingerprint returns a short hex fingerprint of an identity key.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub domain.X25519Public) domain.Fingerprint {
	sum := sha256.Sum256(pub[:])
	return domain.Fingerprint(hex.EncodeToString(sum[:10]))
}
