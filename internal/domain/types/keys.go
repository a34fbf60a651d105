package types

import (
	"encoding/base64"
	"fmt"
)

// All fixed-size key types marshal to standard base64 text, so JSON payloads
// and persisted records carry base64 strings rather than byte arrays.

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

func (p X25519Public) MarshalText() ([]byte, error) { return encodeText(p[:]), nil }

func (p *X25519Public) UnmarshalText(text []byte) error {
	return decodeText(text, p[:], "x25519 public key")
}

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

func (k X25519Private) MarshalText() ([]byte, error) { return encodeText(k[:]), nil }

func (k *X25519Private) UnmarshalText(text []byte) error {
	return decodeText(text, k[:], "x25519 private key")
}

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

func (p Ed25519Public) MarshalText() ([]byte, error) { return encodeText(p[:]), nil }

func (p *Ed25519Public) UnmarshalText(text []byte) error {
	return decodeText(text, p[:], "ed25519 public key")
}

// Ed25519Private is an Ed25519 signing private key (seed || public).
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

func (k Ed25519Private) MarshalText() ([]byte, error) { return encodeText(k[:]), nil }

func (k *Ed25519Private) UnmarshalText(text []byte) error {
	return decodeText(text, k[:], "ed25519 private key")
}

// Signature is a detached Ed25519 signature.
type Signature [64]byte

func (s Signature) MarshalText() ([]byte, error) { return encodeText(s[:]), nil }

func (s *Signature) UnmarshalText(text []byte) error {
	return decodeText(text, s[:], "signature")
}

// ChainKey is the symmetric ratchet position for one contact.
type ChainKey [32]byte

func (c ChainKey) MarshalText() ([]byte, error) { return encodeText(c[:]), nil }

func (c *ChainKey) UnmarshalText(text []byte) error {
	return decodeText(text, c[:], "chain key")
}

// MessageKey encrypts exactly one message. It is never persisted.
type MessageKey [32]byte

// Nonce is the 24-byte secretbox nonce sent with every ciphertext.
type Nonce [24]byte

func (n Nonce) MarshalText() ([]byte, error) { return encodeText(n[:]), nil }

func (n *Nonce) UnmarshalText(text []byte) error {
	return decodeText(text, n[:], "nonce")
}

func encodeText(b []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(out, b)
	return out
}

func decodeText(text, dst []byte, what string) error {
	buf := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(buf, text)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n != len(dst) {
		return fmt.Errorf("%s: want %d bytes, got %d", what, len(dst), n)
	}
	copy(dst, buf[:n])
	clear(buf)
	return nil
}
