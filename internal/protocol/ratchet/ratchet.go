package ratchet

import (
	"crypto/hmac"
	"crypto/sha512"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"cipherlink/internal/domain"
	"cipherlink/internal/util/memzero"
)

// stepLabel domain-separates the chain KDF from any other use of the chain key.
var stepLabel = []byte("cipherlink/ratchet/step")

// Overhead is the ciphertext expansion added by Seal.
const Overhead = secretbox.Overhead

// StepForward derives the message key for the current position and the chain
// key for the next one: HMAC-SHA-512 keyed by ck, split in halves.
func StepForward(ck domain.ChainKey) (mk domain.MessageKey, next domain.ChainKey) {
	h := hmac.New(sha512.New, ck[:])
	h.Write(stepLabel)
	out := h.Sum(nil)
	copy(mk[:], out[:32])
	copy(next[:], out[32:])
	memzero.Zero(out)
	return mk, next
}

// Seal encrypts plaintext under mk with a fresh nonce read from r.
func Seal(r io.Reader, mk domain.MessageKey, plaintext []byte) ([]byte, domain.Nonce, error) {
	var nonce domain.Nonce
	if _, err := io.ReadFull(r, nonce[:]); err != nil {
		return nil, nonce, fmt.Errorf("read nonce: %w", err)
	}
	key := [32]byte(mk)
	defer memzero.Zero(key[:])
	nb := [24]byte(nonce)
	return secretbox.Seal(nil, plaintext, &nb, &key), nonce, nil
}

// Open decrypts ciphertext under mk. Any integrity failure, including a
// wrong nonce or key, yields domain.ErrAuthenticationFailed.
func Open(mk domain.MessageKey, ciphertext []byte, nonce domain.Nonce) ([]byte, error) {
	key := [32]byte(mk)
	defer memzero.Zero(key[:])
	nb := [24]byte(nonce)
	pt, ok := secretbox.Open(nil, ciphertext, &nb, &key)
	if !ok {
		return nil, domain.ErrAuthenticationFailed
	}
	return pt, nil
}
