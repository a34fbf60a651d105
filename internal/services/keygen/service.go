package keygen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
)

const (
	// ActiveSignedPreKeyID is the id of the single signed pre-key an account publishes.
	ActiveSignedPreKeyID domain.SignedPreKeyID = 1
	// DefaultOneTimePreKeys is the batch size generated at registration.
	DefaultOneTimePreKeys = 50
)

// ErrInvalidCount is returned for a negative or overflowing one-time pre-key batch.
var ErrInvalidCount = errors.New("invalid one-time pre-key count")

// Generator creates identity, signed pre-key and one-time pre-key material.
//
// The identity contains:
//   - X25519 key pair for Diffie-Hellman (handshake).
//   - Ed25519 key pair, seeded by the X25519 private key, for signing the
//     signed pre-key.
type Generator struct {
	rand io.Reader
}

// New returns a Generator drawing entropy from r, or crypto/rand when r is nil.
func New(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

// GenerateIdentity creates a new long-term identity.
func (g *Generator) GenerateIdentity() (domain.IdentityKeyPair, error) {
	xPriv, xPub, err := crypto.GenerateX25519(g.rand)
	if err != nil {
		return domain.IdentityKeyPair{}, fmt.Errorf("generate identity: %w", err)
	}
	edPriv, edPub := crypto.Ed25519FromSeed(xPriv)
	return domain.IdentityKeyPair{
		XPub:   xPub,
		XPriv:  xPriv,
		EdPub:  edPub,
		EdPriv: edPriv,
	}, nil
}

// GenerateSignedPreKey creates an unsigned pre-key pair with the given id.
// Sign it with SignPreKey before publishing.
func (g *Generator) GenerateSignedPreKey(id domain.SignedPreKeyID) (domain.SignedPreKeyPair, error) {
	priv, pub, err := crypto.GenerateX25519(g.rand)
	if err != nil {
		return domain.SignedPreKeyPair{}, fmt.Errorf("generate signed pre-key: %w", err)
	}
	return domain.SignedPreKeyPair{ID: id, Priv: priv, Pub: pub}, nil
}

// GenerateOneTimePreKeys creates count pairs with ids start … start+count-1.
func (g *Generator) GenerateOneTimePreKeys(
	start domain.OneTimePreKeyID,
	count int,
) ([]domain.OneTimePreKeyPair, error) {
	if count < 0 || uint64(start)+uint64(count) > math.MaxUint32+1 {
		return nil, fmt.Errorf("%w: %d from %d", ErrInvalidCount, count, start)
	}
	out := make([]domain.OneTimePreKeyPair, 0, count)
	for i := 0; i < count; i++ {
		priv, pub, err := crypto.GenerateX25519(g.rand)
		if err != nil {
			for j := range out {
				crypto.Wipe(out[j].Priv[:])
			}
			return nil, fmt.Errorf("generate one-time pre-key: %w", err)
		}
		out = append(out, domain.OneTimePreKeyPair{
			ID:   start + domain.OneTimePreKeyID(i),
			Priv: priv,
			Pub:  pub,
		})
	}
	return out, nil
}

// GeneratePrivateBundle creates a complete, signed private bundle with
// oneTimeCount one-time pre-keys numbered from zero.
func (g *Generator) GeneratePrivateBundle(oneTimeCount int) (domain.StoredPrivateKeyBundle, error) {
	id, err := g.GenerateIdentity()
	if err != nil {
		return domain.StoredPrivateKeyBundle{}, err
	}
	spk, err := g.GenerateSignedPreKey(ActiveSignedPreKeyID)
	if err != nil {
		id.Wipe()
		return domain.StoredPrivateKeyBundle{}, err
	}
	spk.Signature = SignPreKey(spk.Pub, id.XPriv)

	otks, err := g.GenerateOneTimePreKeys(0, oneTimeCount)
	if err != nil {
		id.Wipe()
		crypto.Wipe(spk.Priv[:])
		return domain.StoredPrivateKeyBundle{}, err
	}
	return domain.StoredPrivateKeyBundle{
		Identity:            id,
		SignedPreKey:        spk,
		OneTimePreKeys:      otks,
		NextOneTimePreKeyID: domain.OneTimePreKeyID(len(otks)),
	}, nil
}

// SignPreKey signs a pre-key's public half with the Ed25519 key derived from
// the identity private key. Ed25519 signatures are deterministic. Peers check
// it with x3dh.VerifySignedPreKey.
func SignPreKey(prekey domain.X25519Public, identity domain.X25519Private) domain.Signature {
	edPriv, _ := crypto.Ed25519FromSeed(identity)
	defer crypto.Wipe(edPriv[:])
	return crypto.SignEd25519(edPriv, prekey[:])
}
