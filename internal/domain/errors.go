package domain

import "errors"

var (
	// ErrPeerNotFound is returned when the directory has no bundle for the peer.
	ErrPeerNotFound = errors.New("peer not found in key directory")
	// ErrInvalidPeerBundle is returned when the peer's signed pre-key does not
	// verify against its identity, or its keys are unusable for agreement.
	ErrInvalidPeerBundle = errors.New("invalid peer key bundle")
	// ErrNoLocalKeys is returned when the local account never registered.
	ErrNoLocalKeys = errors.New("no local keys; register first")
	// ErrNoSession is returned when encrypting or decrypting before any handshake.
	ErrNoSession = errors.New("no session with contact; handshake first")
	// ErrAuthenticationFailed is returned when a ciphertext fails its integrity
	// check. The session state is left untouched.
	ErrAuthenticationFailed = errors.New("message authentication failed")
	// ErrDesynchronizedSession accompanies ErrAuthenticationFailed once
	// failures repeat; the session must be re-established by a new handshake.
	ErrDesynchronizedSession = errors.New("session chain keys out of sync; re-handshake required")
)
