package message

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"cipherlink/internal/domain"
	"cipherlink/internal/protocol/ratchet"
	"cipherlink/internal/util/keylock"
	"cipherlink/internal/util/memzero"
)

// DefaultMaxAuthFailures is the number of consecutive failed decrypts on one
// session state after which the session is reported as desynchronised.
const DefaultMaxAuthFailures = 3

// Service encrypts and decrypts with the symmetric ratchet.
//
// High-level flow:
//   - Encrypt: step the chain, seal under the message key, commit the next
//     chain key.
//   - Decrypt: step the chain, open; commit only if authentication succeeds.
//   - Seal/Open: wrap the above in an Envelope, running the handshake first
//     when there is no session yet. The initiator repeats the handshake
//     header until the contact's first message decrypts.
//
// Messages must be decrypted in the order they were encrypted. A skipped or
// reordered message fails authentication and does not move the chain.
type Service struct {
	store       domain.SessionStore
	sessions    domain.SessionService
	locks       *keylock.Locker
	rand        io.Reader
	maxFailures int
	logger      *zap.Logger

	mu       sync.Mutex
	failures map[string]failureCount
}

// failureCount tracks consecutive decrypt failures against one session
// version. A new version, from a handshake or a successful step, resets it.
type failureCount struct {
	version uint64
	count   int
}

// New constructs a message service. locks must be shared with the session
// service. A nil r selects crypto/rand; maxFailures <= 0 selects
// DefaultMaxAuthFailures.
func New(
	store domain.SessionStore,
	sessions domain.SessionService,
	locks *keylock.Locker,
	r io.Reader,
	maxFailures int,
	logger *zap.Logger,
) *Service {
	if r == nil {
		r = rand.Reader
	}
	if maxFailures <= 0 {
		maxFailures = DefaultMaxAuthFailures
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		sessions:    sessions,
		locks:       locks,
		rand:        r,
		maxFailures: maxFailures,
		logger:      logger.With(zap.Namespace("message")),
		failures:    make(map[string]failureCount),
	}
}

// Encrypt seals plaintext for contact and advances the sending chain.
// The message key is wiped before return and never stored.
func (s *Service) Encrypt(
	account domain.AccountID,
	contact domain.ContactID,
	plaintext []byte,
) ([]byte, domain.Nonce, error) {
	ct, nonce, _, err := s.encrypt(account, contact, plaintext)
	return ct, nonce, err
}

// encrypt also returns the handshake header still owed to the contact.
func (s *Service) encrypt(
	account domain.AccountID,
	contact domain.ContactID,
	plaintext []byte,
) ([]byte, domain.Nonce, *domain.HandshakeHeader, error) {
	unlock, _ := s.lockContact(account, contact)
	defer unlock()

	state, err := s.load(account, contact)
	if err != nil {
		return nil, domain.Nonce{}, nil, err
	}
	defer state.Wipe()

	mk, next := ratchet.StepForward(state.ChainKey)
	defer memzero.ZeroAll(mk[:], next[:])

	ct, nonce, err := ratchet.Seal(s.rand, mk, plaintext)
	if err != nil {
		return nil, domain.Nonce{}, nil, err
	}
	if err := s.store.SaveSessionState(account, contact, state.Advance(next, false)); err != nil {
		return nil, domain.Nonce{}, nil, fmt.Errorf("save session state: %w", err)
	}
	return ct, nonce, state.PendingHandshake(), nil
}

// Decrypt opens a ciphertext from contact. On authentication failure the
// stored state is left untouched, so the same message may be retried; once
// failures on the same state reach the configured limit the error also wraps
// domain.ErrDesynchronizedSession. A success shows the contact holds the
// session, so a pending handshake header is no longer sent.
func (s *Service) Decrypt(
	account domain.AccountID,
	contact domain.ContactID,
	ciphertext []byte,
	nonce domain.Nonce,
) ([]byte, error) {
	unlock, key := s.lockContact(account, contact)
	defer unlock()

	state, err := s.load(account, contact)
	if err != nil {
		return nil, err
	}
	defer state.Wipe()

	mk, next := ratchet.StepForward(state.ChainKey)
	defer memzero.ZeroAll(mk[:], next[:])

	pt, err := ratchet.Open(mk, ciphertext, nonce)
	if err != nil {
		n := s.recordFailure(key, state.Version)
		s.logger.Warn("message authentication failed",
			zap.Stringer("account", account),
			zap.Stringer("contact", contact),
			zap.Uint64("version", state.Version),
			zap.Int("consecutive_failures", n))
		if n >= s.maxFailures {
			return nil, fmt.Errorf("%w: %w", domain.ErrDesynchronizedSession, err)
		}
		return nil, err
	}

	if err := s.store.SaveSessionState(account, contact, state.Advance(next, true)); err != nil {
		memzero.Zero(pt)
		return nil, fmt.Errorf("save session state: %w", err)
	}
	s.resetFailures(key)
	return pt, nil
}

// Seal builds an Envelope for to. Without an existing session it runs the
// handshake first. Until the contact answers, every envelope carries the
// handshake header, whether the session came from Seal or from an explicit
// Initiate.
func (s *Service) Seal(
	ctx context.Context,
	from domain.AccountID,
	to domain.AccountID,
	plaintext []byte,
) (domain.Envelope, error) {
	contact := domain.ContactID(to)
	unlock := s.locks.Lock(keylock.HandshakeKey(string(from), string(contact)))
	defer unlock()

	state, ok, err := s.store.LoadSessionState(from, contact)
	if err != nil {
		return domain.Envelope{}, err
	}
	state.Wipe()
	if !ok {
		if _, err := s.sessions.Initiate(ctx, from, contact); err != nil {
			return domain.Envelope{}, err
		}
	}

	env := domain.Envelope{From: from, To: to}
	env.Ciphertext, env.Nonce, env.Handshake, err = s.encrypt(from, contact, plaintext)
	if err != nil {
		return domain.Envelope{}, err
	}
	return env, nil
}

// Open decrypts an Envelope addressed to me, accepting the handshake first
// when the envelope carries one this account has not accepted yet.
func (s *Service) Open(ctx context.Context, me domain.AccountID, env domain.Envelope) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if env.To != me {
		return nil, fmt.Errorf("envelope addressed to %q, not %q", env.To, me)
	}
	contact := domain.ContactID(env.From)
	unlock := s.locks.Lock(keylock.HandshakeKey(string(me), string(contact)))
	defer unlock()

	if env.Handshake != nil {
		state, ok, err := s.store.LoadSessionState(me, contact)
		if err != nil {
			return nil, err
		}
		state.Wipe()
		if !ok || !state.Handshake.SameHandshake(env.Handshake) {
			if err := s.sessions.Respond(me, contact, *env.Handshake); err != nil {
				return nil, err
			}
		}
	}
	return s.Decrypt(me, contact, env.Ciphertext, env.Nonce)
}

// lockContact takes the account gate shared and the conversation lock
// exclusively. The second result is the conversation key.
func (s *Service) lockContact(account domain.AccountID, contact domain.ContactID) (func(), string) {
	key := keylock.ContactKey(string(account), string(contact))
	unlockAccount := s.locks.RLock(keylock.AccountKey(string(account)))
	unlockContact := s.locks.Lock(key)
	return func() {
		unlockContact()
		unlockAccount()
	}, key
}

func (s *Service) load(account domain.AccountID, contact domain.ContactID) (domain.SessionState, error) {
	state, ok, err := s.store.LoadSessionState(account, contact)
	if err != nil {
		return domain.SessionState{}, err
	}
	if !ok {
		return domain.SessionState{}, fmt.Errorf("%w: %q", domain.ErrNoSession, contact)
	}
	return state, nil
}

func (s *Service) recordFailure(key string, version uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.failures[key]
	if f.version != version {
		f = failureCount{version: version}
	}
	f.count++
	s.failures[key] = f
	return f.count
}

func (s *Service) resetFailures(key string) {
	s.mu.Lock()
	delete(s.failures, key)
	s.mu.Unlock()
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
