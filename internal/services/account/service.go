package account

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cipherlink/internal/crypto"
	"cipherlink/internal/domain"
	"cipherlink/internal/services/keygen"
	"cipherlink/internal/util/keylock"
)

// Service registers accounts, publishes their bundles and removes them.
//
// Registration order matters: the private bundle is persisted before the
// public half is published, so the directory never advertises keys this
// device cannot answer for.
type Service struct {
	gen    *keygen.Generator
	store  domain.SessionStore
	dir    domain.DirectoryClient
	locks  *keylock.Locker
	logger *zap.Logger
}

// New returns an account service. locks must be the Locker shared with the
// session service, since both rewrite the private bundle.
func New(
	gen *keygen.Generator,
	store domain.SessionStore,
	dir domain.DirectoryClient,
	locks *keylock.Locker,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gen:    gen,
		store:  store,
		dir:    dir,
		locks:  locks,
		logger: logger.With(zap.Namespace("account")),
	}
}

// Register generates fresh keys for account, persists the private bundle and
// publishes the public one. Registering again replaces every key, which
// invalidates bundles other devices fetched earlier.
func (s *Service) Register(
	ctx context.Context,
	account domain.AccountID,
	oneTimeCount int,
) (domain.PublicKeyBundle, error) {
	priv, err := s.gen.GeneratePrivateBundle(oneTimeCount)
	if err != nil {
		return domain.PublicKeyBundle{}, err
	}
	defer priv.Wipe()

	unlock := s.lockBundle(account)
	err = s.store.SavePrivateBundle(account, priv)
	unlock()
	if err != nil {
		return domain.PublicKeyBundle{}, fmt.Errorf("save private bundle: %w", err)
	}

	pub := priv.Upload()
	if err := s.upload(ctx, account, pub, priv.NextOneTimePreKeyID); err != nil {
		return domain.PublicKeyBundle{}, err
	}
	s.logger.Info("account registered",
		zap.Stringer("account", account),
		zap.String("fingerprint", string(crypto.Fingerprint(pub.IdentityKey))),
		zap.Int("one_time_prekeys", len(pub.OneTimePreKeys)))
	return pub, nil
}

// Bundle rebuilds the upload form of account's public bundle from storage.
// It carries only one-time pre-keys that were never published; the rest may
// already be in an initiator's hands.
func (s *Service) Bundle(account domain.AccountID) (domain.PublicKeyBundle, error) {
	pub, _, err := s.snapshot(account)
	return pub, err
}

// Publish re-uploads the stored public bundle. It is idempotent.
func (s *Service) Publish(ctx context.Context, account domain.AccountID) error {
	pub, next, err := s.snapshot(account)
	if err != nil {
		return err
	}
	if err := s.upload(ctx, account, pub, next); err != nil {
		return err
	}
	s.logger.Debug("bundle published",
		zap.Stringer("account", account),
		zap.Int("one_time_prekeys", len(pub.OneTimePreKeys)))
	return nil
}

// Replenish appends count one-time pre-keys, continuing the id sequence, and
// publishes them.
func (s *Service) Replenish(ctx context.Context, account domain.AccountID, count int) error {
	unlock := s.lockBundle(account)
	priv, ok, err := s.store.LoadPrivateBundle(account)
	if err != nil {
		unlock()
		return err
	}
	if !ok {
		unlock()
		return domain.ErrNoLocalKeys
	}
	defer priv.Wipe()

	fresh, err := s.gen.GenerateOneTimePreKeys(priv.NextOneTimePreKeyID, count)
	if err != nil {
		unlock()
		return err
	}
	priv.OneTimePreKeys = append(priv.OneTimePreKeys, fresh...)
	priv.NextOneTimePreKeyID += domain.OneTimePreKeyID(count)
	err = s.store.SavePrivateBundle(account, priv)
	unlock()
	if err != nil {
		return fmt.Errorf("save private bundle: %w", err)
	}

	s.logger.Info("one-time pre-keys replenished",
		zap.Stringer("account", account),
		zap.Int("added", count),
		zap.Int("available", len(priv.OneTimePreKeys)))
	return s.Publish(ctx, account)
}

// Fingerprint returns the short fingerprint of account's identity key.
func (s *Service) Fingerprint(account domain.AccountID) (domain.Fingerprint, error) {
	pub, err := s.Bundle(account)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(pub.IdentityKey), nil
}

// Logout removes every private key and chain key held for account. It waits
// for in-flight handshakes and ratchet steps of the account, so none of them
// can write after the wipe.
func (s *Service) Logout(account domain.AccountID) error {
	unlock := s.locks.Lock(keylock.AccountKey(string(account)))
	defer unlock()
	if err := s.store.ClearAll(account); err != nil {
		return fmt.Errorf("clear local state: %w", err)
	}
	s.logger.Info("account logged out", zap.Stringer("account", account))
	return nil
}

// lockBundle takes the account gate shared and the bundle lock exclusively.
func (s *Service) lockBundle(account domain.AccountID) func() {
	unlockAccount := s.locks.RLock(keylock.AccountKey(string(account)))
	unlockBundle := s.locks.Lock(keylock.BundleKey(string(account)))
	return func() {
		unlockBundle()
		unlockAccount()
	}
}

// snapshot returns the upload form and the id sequence position it covers.
func (s *Service) snapshot(account domain.AccountID) (domain.PublicKeyBundle, domain.OneTimePreKeyID, error) {
	priv, ok, err := s.store.LoadPrivateBundle(account)
	if err != nil {
		return domain.PublicKeyBundle{}, 0, err
	}
	if !ok {
		return domain.PublicKeyBundle{}, 0, domain.ErrNoLocalKeys
	}
	defer priv.Wipe()
	return priv.Upload(), priv.NextOneTimePreKeyID, nil
}

// upload publishes pub and then records that every id below next has been
// published. The watermark only moves after the directory accepted the
// upload, so a failed publish is retried with the same keys.
func (s *Service) upload(
	ctx context.Context,
	account domain.AccountID,
	pub domain.PublicKeyBundle,
	next domain.OneTimePreKeyID,
) error {
	if err := s.dir.Publish(ctx, account, pub); err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}

	unlock := s.lockBundle(account)
	defer unlock()
	priv, ok, err := s.store.LoadPrivateBundle(account)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer priv.Wipe()
	// Re-registered meanwhile: the watermark belongs to other keys.
	if priv.Identity.XPub != pub.IdentityKey || priv.PublishedOneTimePreKeyID >= next {
		return nil
	}
	priv.PublishedOneTimePreKeyID = next
	if err := s.store.SavePrivateBundle(account, priv); err != nil {
		return fmt.Errorf("save private bundle: %w", err)
	}
	return nil
}

// Compile-time assertion that Service implements domain.AccountService.
var _ domain.AccountService = (*Service)(nil)
