// Package commands defines the cipherlink CLI and wires dependencies for subcommands.
//
// Commands
//
//   - register       Generate keys for --account and publish the bundle
//   - publish        Re-upload the stored bundle
//   - replenish      Add one-time pre-keys and publish
//   - fingerprint    Print the identity fingerprint
//   - start-session  Run the handshake against a contact's bundle
//   - send           Encrypt a message into an envelope
//   - recv           Decrypt an envelope
//   - logout         Remove every local key and session
//
// # Implementation
//
// The root command loads the YAML config, applies flag overrides and builds
// an app.Wire before any subcommand runs. Envelopes are written as JSON to
// stdout or --out and read back from a file or stdin; moving them between
// devices is left to the caller.
package commands
