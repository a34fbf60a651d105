// Package keygen generates the key material an account publishes.
//
// Identity keys are never rotated. The signed pre-key is signed by the
// Ed25519 key derived from the identity, and one-time pre-keys carry dense
// ids so a later batch can continue where the last one stopped.
package keygen
