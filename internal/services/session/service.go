package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"go.uber.org/zap"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/protocol/x3dh"
	"cipherlink/internal/util/keylock"
	"cipherlink/internal/util/memzero"
)

// Service runs the handshake in both roles and commits the initial chain key.
//
// This service handles:
//   - Loading our own private bundle from the session store.
//   - Fetching the peer's public bundle from the key directory.
//   - Running the key agreement as initiator or responder.
//   - Persisting the resulting session state for the message service.
type Service struct {
	store  domain.SessionStore
	dir    domain.DirectoryClient
	locks  *keylock.Locker
	rand   io.Reader
	logger *zap.Logger
}

// New constructs a session service. locks must be shared with the message
// and account services. A nil r selects crypto/rand.
func New(
	store domain.SessionStore,
	dir domain.DirectoryClient,
	locks *keylock.Locker,
	r io.Reader,
	logger *zap.Logger,
) *Service {
	if r == nil {
		r = rand.Reader
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		dir:    dir,
		locks:  locks,
		rand:   r,
		logger: logger.With(zap.Namespace("session")),
	}
}

// Initiate establishes a session with contact and returns the header that
// must accompany the first message.
//
// Steps:
//  1. Load our private bundle.
//  2. Fetch the contact's bundle from the directory.
//  3. Verify its signed pre-key and derive the chain key with a fresh
//     ephemeral key.
//  4. Commit the new session state, unless ctx was cancelled or the account
//     logged out meanwhile. The header is kept with it as pending, so every
//     envelope sealed before the contact answers carries it.
//
// Any failure leaves the stored state untouched.
func (s *Service) Initiate(
	ctx context.Context,
	account domain.AccountID,
	contact domain.ContactID,
) (domain.HandshakeHeader, error) {
	priv, ok, err := s.store.LoadPrivateBundle(account)
	if err != nil {
		return domain.HandshakeHeader{}, err
	}
	if !ok {
		return domain.HandshakeHeader{}, domain.ErrNoLocalKeys
	}
	defer priv.Wipe()

	peer, err := s.dir.Fetch(ctx, domain.AccountID(contact))
	if err != nil {
		return domain.HandshakeHeader{}, fmt.Errorf("fetch bundle for %q: %w", contact, err)
	}

	ekPriv, ekPub, err := crypto.GenerateX25519(s.rand)
	if err != nil {
		return domain.HandshakeHeader{}, err
	}
	defer memzero.Zero(ekPriv[:])

	ck, err := x3dh.InitiatorChainKey(priv.Identity.XPriv, ekPriv, peer)
	if err != nil {
		return domain.HandshakeHeader{}, err
	}
	defer memzero.Zero(ck[:])

	header := domain.HandshakeHeader{
		IdentityKey:  priv.Identity.XPub,
		EphemeralKey: ekPub,
	}
	if peer.OneTimePreKey != nil {
		id := peer.OneTimePreKey.KeyID
		header.OneTimePreKeyID = &id
	}

	unlockAccount := s.locks.RLock(keylock.AccountKey(string(account)))
	defer unlockAccount()
	unlock := s.locks.Lock(keylock.ContactKey(string(account), string(contact)))
	defer unlock()

	// A cancelled handshake must not replace an existing session.
	if err := ctx.Err(); err != nil {
		return domain.HandshakeHeader{}, err
	}
	current, ok, err := s.store.LoadPrivateBundle(account)
	if err != nil {
		return domain.HandshakeHeader{}, err
	}
	if !ok {
		return domain.HandshakeHeader{}, domain.ErrNoLocalKeys
	}
	current.Wipe()

	version, err := s.commit(account, contact, ck, header, true)
	if err != nil {
		return domain.HandshakeHeader{}, err
	}

	s.logger.Info("session initiated",
		zap.Stringer("account", account),
		zap.Stringer("contact", contact),
		zap.Stringer("peer_fingerprint", crypto.Fingerprint(peer.IdentityKey)),
		zap.Bool("one_time_prekey", header.OneTimePreKeyID != nil),
		zap.Uint64("version", version))
	return header, nil
}

// Respond derives the session from an initiator's handshake header and
// commits it. A claimed one-time pre-key that is unknown or already consumed
// is skipped with a warning; the initiator then holds a different chain key
// and the first decrypt will fail.
//
// The claimed one-time pre-key is removed before the session is committed,
// so a failed removal leaves no session behind and a failed commit never
// leaves the key usable.
func (s *Service) Respond(
	account domain.AccountID,
	contact domain.ContactID,
	header domain.HandshakeHeader,
) error {
	unlockAccount := s.locks.RLock(keylock.AccountKey(string(account)))
	defer unlockAccount()

	priv, ok, err := s.store.LoadPrivateBundle(account)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoLocalKeys
	}
	defer priv.Wipe()

	var opkPriv *domain.X25519Private
	var opkID domain.OneTimePreKeyID
	if header.OneTimePreKeyID != nil {
		opkID = *header.OneTimePreKeyID
		if k, found := priv.OneTimePreKey(opkID); found {
			opkPriv = &k.Priv
			defer memzero.Zero(k.Priv[:])
		} else {
			s.logger.Warn("claimed one-time pre-key not available; continuing without it",
				zap.Stringer("account", account),
				zap.Stringer("contact", contact),
				zap.Uint32("one_time_prekey_id", uint32(opkID)))
		}
	}

	ck, err := x3dh.ResponderChainKey(
		priv.Identity.XPriv,
		priv.SignedPreKey.Priv,
		opkPriv,
		header.IdentityKey,
		header.EphemeralKey,
	)
	if err != nil {
		return fmt.Errorf("responder key agreement: %w", err)
	}
	defer memzero.Zero(ck[:])

	if opkPriv != nil {
		unlockBundle := s.locks.Lock(keylock.BundleKey(string(account)))
		err := s.store.RemoveOneTimePreKey(account, opkID)
		unlockBundle()
		if err != nil {
			return fmt.Errorf("remove one-time pre-key %d: %w", opkID, err)
		}
	}

	unlock := s.locks.Lock(keylock.ContactKey(string(account), string(contact)))
	version, err := s.commit(account, contact, ck, header, false)
	unlock()
	if err != nil {
		return err
	}

	s.logger.Info("session accepted",
		zap.Stringer("account", account),
		zap.Stringer("contact", contact),
		zap.Stringer("peer_fingerprint", crypto.Fingerprint(header.IdentityKey)),
		zap.Bool("one_time_prekey", opkPriv != nil),
		zap.Uint64("version", version))
	return nil
}

// commit overwrites the contact's session with ck and the header that
// produced it. pending marks the initiator side. The caller holds the
// contact lock.
func (s *Service) commit(
	account domain.AccountID,
	contact domain.ContactID,
	ck domain.ChainKey,
	header domain.HandshakeHeader,
	pending bool,
) (uint64, error) {
	prev, _, err := s.store.LoadSessionState(account, contact)
	if err != nil {
		return 0, err
	}
	prev.Wipe()

	state := domain.SessionState{
		ChainKey:  ck,
		Version:   prev.Version + 1,
		Handshake: &header,
		Pending:   pending,
	}
	if err := s.store.SaveSessionState(account, contact, state); err != nil {
		return 0, fmt.Errorf("save session state: %w", err)
	}
	return state.Version, nil
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
