// Package ratchet implements the one-directional symmetric ratchet.
//
// Each message advances a KDF chain: StepForward turns the current chain key
// into a single-use message key and the next chain key. Both parties start
// from the chain key agreed by the handshake and step in lockstep, so the
// n-th message on either side uses the same key. Knowing a chain key reveals
// nothing about earlier ones.
//
// Messages are sealed with NaCl secretbox (XSalsa20-Poly1305) under a random
// 24-byte nonce.
//
// Concurrency: the functions are pure. Callers must serialise the
// load-step-commit cycle per conversation.
package ratchet
