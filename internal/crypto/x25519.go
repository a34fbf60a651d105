package crypto

import (
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"

	"cipherlink/internal/domain"
)

// GenerateX25519 returns a fresh Curve25519 key pair drawn from r.
// The private key is clamped per RFC 7748.
func GenerateX25519(r io.Reader) (priv domain.X25519Private, pub domain.X25519Public, err error) {
	if _, err = io.ReadFull(r, priv[:]); err != nil {
		return priv, pub, fmt.Errorf("read entropy: %w", err)
	}
	clamp(&priv)
	pub, err = PublicKey(priv)
	return priv, pub, err
}

// PublicKey derives the Curve25519 public key for priv.
func PublicKey(priv domain.X25519Private) (pub domain.X25519Public, err error) {
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return pub, err
	}
	copy(pub[:], pb)
	return pub, nil
}

// DH computes X25519 Diffie–Hellman. It fails on low-order peer keys, whose
// shared secret would be all zeros.
func DH(priv domain.X25519Private, pub domain.X25519Public) (out [32]byte, err error) {
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	Wipe(secret)
	return out, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
