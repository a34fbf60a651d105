// Package crypto exposes the minimal primitives used by cipherlink.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     PublicKey, DH)
//   - Ed25519 signing keys derived from an X25519 seed, signing and
//     verification (Ed25519FromSeed, SignEd25519, VerifyEd25519)
//   - Best-effort memory wiping for sensitive byte slices (Wipe)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. Key generation takes an io.Reader so tests
// can supply deterministic entropy.
package crypto
