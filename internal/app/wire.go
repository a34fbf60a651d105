package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"cipherlink/internal/directory"
	"cipherlink/internal/domain"
	accountsvc "cipherlink/internal/services/account"
	"cipherlink/internal/services/keygen"
	messagesvc "cipherlink/internal/services/message"
	sessionsvc "cipherlink/internal/services/session"
	"cipherlink/internal/store"
	"cipherlink/internal/util/keylock"
)

// Wire bundles the store, directory client and services for the CLI.
type Wire struct {
	Config    Config
	Logger    *zap.Logger
	Store     domain.SessionStore
	Directory domain.DirectoryClient
	Accounts  *accountsvc.Service
	Sessions  *sessionsvc.Service
	Messages  *messagesvc.Service

	closers []func() error
}

// NewWire constructs the dependency graph from cfg. A nil logger disables
// logging.
func NewWire(cfg Config, logger *zap.Logger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Wire{Config: cfg, Logger: logger}

	st, err := w.openStore(cfg)
	if err != nil {
		return nil, err
	}
	w.Store = st

	// Ensure an HTTP client is available for outbound calls
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	w.Directory = directory.NewClient(cfg.DirectoryURL,
		directory.WithHTTPClient(httpClient),
		directory.WithPublishRetries(cfg.PublishRetries, 0),
		directory.WithLogger(logger))

	// One Locker orders handshakes, ratchet steps and bundle rewrites.
	locks := &keylock.Locker{}
	w.Accounts = accountsvc.New(keygen.New(nil), w.Store, w.Directory, locks, logger)
	w.Sessions = sessionsvc.New(w.Store, w.Directory, locks, nil, logger)
	w.Messages = messagesvc.New(w.Store, w.Sessions, locks, nil, cfg.MaxAuthFailures, logger)
	return w, nil
}

func (w *Wire) openStore(cfg Config) (domain.SessionStore, error) {
	switch cfg.Store {
	case StoreMemory:
		return store.NewMemoryStore(), nil
	case StoreBadger:
		dir := filepath.Join(cfg.Home, "badger")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
		bs, err := store.OpenBadgerStore(dir)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, bs.Close)
		return bs, nil
	case StoreFile:
		var opts []store.FileOption
		if cfg.Passphrase != "" {
			opts = append(opts, store.WithPassphrase(cfg.Passphrase))
		}
		return store.NewFileStore(filepath.Join(cfg.Home, "accounts"), opts...), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// Close releases the store and flushes the logger.
func (w *Wire) Close() error {
	var errs []error
	for _, c := range w.closers {
		errs = append(errs, c())
	}
	_ = w.Logger.Sync()
	return errors.Join(errs...)
}
