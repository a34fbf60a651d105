// Package message encrypts and decrypts messages with the symmetric ratchet.
//
// Every call loads the contact's chain key, derives a single-use message
// key, and commits the next chain key only after the cryptographic step
// succeeded. Repeated authentication failures are surfaced as a
// desynchronised session that needs a new handshake.
package message
