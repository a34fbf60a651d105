// Package main runs the cipherlink key directory.
//
// HTTP API
//
//	GET /health
//	    Liveness check.
//
//	POST /keys/upload/{accountId}
//	    Store an account's public bundle. A new identity key starts a fresh
//	    one-time pre-key pool; otherwise only ids not seen before are
//	    appended. The signed pre-key signature is checked before anything
//	    is stored. Answers 204 on success.
//
//	GET /keys/{accountId}
//	    Return the bundle with at most one one-time pre-key, which is removed
//	    from the pool. Unknown accounts answer 404.
//
// Behaviour
//
//   - Without --redis all state is held in memory and lost on exit.
//   - With --redis bundles and pools live under the --prefix keyspace.
//   - Every response echoes X-Request-ID, and each request is access logged.
//
// The directory only ever sees public keys.
package main
