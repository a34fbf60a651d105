package x3dh

import (
	"crypto/sha512"
	"fmt"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/util/memzero"
)

// VerifySignedPreKey checks the signed pre-key signature against the bundle's
// signing key. The signature covers the raw 32-byte public key.
func VerifySignedPreKey(signingKey domain.Ed25519Public, spk domain.SignedPreKeyPublic) bool {
	return crypto.VerifyEd25519(signingKey, spk.PublicKey.Slice(), spk.Signature)
}

// InitiatorChainKey derives the initial chain key for the party that fetched
// peer's bundle. The bundle's signed pre-key must verify and its one-time
// pre-key, when present, is mixed in as the fourth agreement.
func InitiatorChainKey(
	ourIdentity domain.X25519Private,
	ourEphemeral domain.X25519Private,
	peer domain.PublicKeyBundle,
) (domain.ChainKey, error) {
	if !VerifySignedPreKey(peer.SigningKey, peer.SignedPreKey) {
		return domain.ChainKey{}, fmt.Errorf("%w: signed pre-key signature", domain.ErrInvalidPeerBundle)
	}

	spk := peer.SignedPreKey.PublicKey
	pairs := []agreement{
		{ourIdentity, spk},               // DH(IKa, SPKb)
		{ourEphemeral, peer.IdentityKey}, // DH(EKa, IKb)
		{ourEphemeral, spk},              // DH(EKa, SPKb)
	}
	if peer.OneTimePreKey != nil {
		pairs = append(pairs, agreement{ourEphemeral, peer.OneTimePreKey.PublicKey}) // DH(EKa, OPKb)
	}

	ck, err := agree(pairs)
	if err != nil {
		return ck, fmt.Errorf("%w: %w", domain.ErrInvalidPeerBundle, err)
	}
	return ck, nil
}

// ResponderChainKey derives the chain key for the bundle owner from the
// initiator's handshake parameters. ourOneTimePreKey is nil when the
// initiator did not use one.
func ResponderChainKey(
	ourIdentity domain.X25519Private,
	ourSignedPreKey domain.X25519Private,
	ourOneTimePreKey *domain.X25519Private,
	peerIdentity domain.X25519Public,
	peerEphemeral domain.X25519Public,
) (domain.ChainKey, error) {
	pairs := []agreement{
		{ourSignedPreKey, peerIdentity},  // DH(SPKb, IKa)
		{ourIdentity, peerEphemeral},     // DH(IKb, EKa)
		{ourSignedPreKey, peerEphemeral}, // DH(SPKb, EKa)
	}
	if ourOneTimePreKey != nil {
		pairs = append(pairs, agreement{*ourOneTimePreKey, peerEphemeral}) // DH(OPKb, EKa)
	}
	return agree(pairs)
}

// DeriveInitialChainKey hashes the concatenated agreement outputs with
// SHA-512 and keeps the first 32 bytes.
func DeriveInitialChainKey(secrets ...[32]byte) (ck domain.ChainKey) {
	transcript := make([]byte, 0, 32*len(secrets))
	for i := range secrets {
		transcript = append(transcript, secrets[i][:]...)
	}
	sum := sha512.Sum512(transcript)
	copy(ck[:], sum[:32])
	memzero.ZeroAll(transcript, sum[:])
	return ck
}

type agreement struct {
	priv domain.X25519Private
	pub  domain.X25519Public
}

func agree(pairs []agreement) (domain.ChainKey, error) {
	secrets := make([][32]byte, 0, len(pairs))
	defer func() {
		for i := range secrets {
			memzero.Zero(secrets[i][:])
		}
	}()
	for i, p := range pairs {
		s, err := crypto.DH(p.priv, p.pub)
		if err != nil {
			return domain.ChainKey{}, fmt.Errorf("dh%d: %w", i+1, err)
		}
		secrets = append(secrets, s)
	}
	return DeriveInitialChainKey(secrets...), nil
}
