// Package x3dh implements the X3DH-style key agreement that bootstraps a
// symmetric ratchet session between two parties.
//
// # Overview
//
// The initiator fetches the responder's public key bundle from the key
// directory. The bundle contains:
//   - Identity key (X25519) and the Ed25519 key derived from it
//   - Signed pre-key (X25519) and its Ed25519 signature
//   - At most one one-time pre-key (X25519)
//
// # Flows
//
// Initiator:
//  1. Verify the signed pre-key signature.
//  2. Compute DH values (IKa·SPKb, EKa·IKb, EKa·SPKb[, EKa·OPKb]).
//  3. SHA-512 over the concatenated DH outputs; the first 32 bytes are the
//     initial chain key.
//
// Responder:
//  1. Receive the handshake header (initiator IK, ephemeral EK[, OPK id]).
//  2. Compute the mirrored DH set (SPKb·IKa, IKb·EKa, SPKb·EKa[, OPKb·EKa]).
//  3. Hash the same transcript to the identical chain key.
//
// # Errors
//
// InitiatorChainKey wraps domain.ErrInvalidPeerBundle when the signature
// fails or a peer key is low-order. Nothing here touches storage.
package x3dh
