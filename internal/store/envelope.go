package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	// The current supported version of the sealed blob format stored on disk.
	sealFormatVersion = 1
)

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// sealed key file has been modified or corrupted.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

// scryptParams are the tunables for passphrase key derivation.
type scryptParams struct {
	N, R, P int
}

func defaultScryptParams() scryptParams { return scryptParams{N: 1 << 15, R: 8, P: 1} }

// blob is the on-disk JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// seal derives a key from passphrase and encrypts raw into a JSON blob.
func seal(passphrase string, raw []byte, params scryptParams) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), salt[:], params.N, params.R, params.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer clear(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte // zero nonce; salt-bound key is unique per write
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(blob{
		V:      sealFormatVersion,
		Salt:   salt[:],
		N:      params.N,
		R:      params.R,
		P:      params.P,
		Cipher: ct,
	})
}

// unseal opens the JSON blob using a key derived from passphrase.
func unseal(passphrase string, b []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrongPassphrase, err)
	}
	if bl.V == 0 || bl.V > sealFormatVersion {
		return nil, fmt.Errorf("unsupported key file version %d", bl.V)
	}

	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer clear(key)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
