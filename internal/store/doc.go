// Package store provides the session store implementations.
//
// Three backends implement domain.SessionStore:
//   - MemoryStore keeps state in process memory (tests, throwaway runs).
//   - FileStore keeps JSON files per account on disk; the private bundle can
//     be sealed with a passphrase (scrypt + ChaCha20-Poly1305).
//   - BadgerStore keeps JSON records in a Badger key-value database.
//
// All methods are concurrency-safe. Each call is atomic for the account or
// contact it addresses; callers needing read-modify-write across calls must
// serialise themselves.
package store
