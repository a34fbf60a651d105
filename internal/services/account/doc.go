// Package account manages the lifecycle of a local account: key generation
// at registration, publishing the public bundle to the key directory,
// replenishing one-time pre-keys and logout.
package account
