package crypto

import (
	"crypto/ed25519"

	"cipherlink/internal/domain"
)

// Ed25519FromSeed derives the signing key pair whose seed is the given
// X25519 private key. One stored secret then covers both agreement and
// signing.
func Ed25519FromSeed(seed domain.X25519Private) (priv domain.Ed25519Private, pub domain.Ed25519Public) {
	sk := ed25519.NewKeyFromSeed(seed[:])
	copy(priv[:], sk)
	copy(pub[:], sk[ed25519.SeedSize:])
	Wipe(sk)
	return priv, pub
}

// SignEd25519 signs msg with priv and returns the signature.
func SignEd25519(priv domain.Ed25519Private, msg []byte) (sig domain.Signature) {
	copy(sig[:], ed25519.Sign(ed25519.PrivateKey(priv[:]), msg))
	return sig
}

// VerifyEd25519 verifies sig over msg with pub.
func VerifyEd25519(pub domain.Ed25519Public, msg []byte, sig domain.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:])
}
