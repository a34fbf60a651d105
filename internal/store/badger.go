package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"cipherlink/internal/domain"
)

// BadgerStore keeps bundles and session states in a Badger key-value store.
//
// Key layout (account and contact are hex encoded):
//
//	acct/<account>/bundle
//	acct/<account>/session/<contact>
//
// Deleted values stay in Badger's value log until garbage collection runs,
// so ClearAll is weaker than FileStore's zero-fill.
type BadgerStore struct {
	db    *badger.DB
	owned bool
}

// OpenBadgerStore opens (or creates) a Badger database at dir. Close releases it.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, owned: true}, nil
}

// NewBadgerStore wraps an already open database. Close leaves db open.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Close closes the database if this store opened it.
func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func accountPrefix(account domain.AccountID) []byte {
	return []byte("acct/" + hex.EncodeToString([]byte(account)) + "/")
}

func bundleKey(account domain.AccountID) []byte {
	return append(accountPrefix(account), "bundle"...)
}

func sessionKey(account domain.AccountID, contact domain.ContactID) []byte {
	return append(accountPrefix(account), "session/"+hex.EncodeToString([]byte(contact))...)
}

func (s *BadgerStore) SavePrivateBundle(account domain.AccountID, bundle domain.StoredPrivateKeyBundle) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, bundleKey(account), bundle)
	})
}

func (s *BadgerStore) LoadPrivateBundle(account domain.AccountID) (domain.StoredPrivateKeyBundle, bool, error) {
	var b domain.StoredPrivateKeyBundle
	var ok bool
	err := s.db.View(func(txn *badger.Txn) (err error) {
		ok, err = getJSON(txn, bundleKey(account), &b)
		return err
	})
	return b, ok, err
}

func (s *BadgerStore) SaveSessionState(
	account domain.AccountID,
	contact domain.ContactID,
	state domain.SessionState,
) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putJSON(txn, sessionKey(account, contact), state)
	})
}

func (s *BadgerStore) LoadSessionState(
	account domain.AccountID,
	contact domain.ContactID,
) (domain.SessionState, bool, error) {
	var st domain.SessionState
	var ok bool
	err := s.db.View(func(txn *badger.Txn) (err error) {
		ok, err = getJSON(txn, sessionKey(account, contact), &st)
		return err
	})
	return st, ok, err
}

func (s *BadgerStore) RemoveOneTimePreKey(account domain.AccountID, id domain.OneTimePreKeyID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		var b domain.StoredPrivateKeyBundle
		ok, err := getJSON(txn, bundleKey(account), &b)
		if err != nil || !ok {
			return err
		}
		defer b.Wipe()
		if _, present := b.OneTimePreKey(id); !present {
			return nil
		}
		out := removeOneTimePreKey(b, id)
		defer out.Wipe()
		return putJSON(txn, bundleKey(account), out)
	})
}

// ClearAll deletes every key under the account prefix in one transaction.
func (s *BadgerStore) ClearAll(account domain.AccountID) error {
	prefix := accountPrefix(account)
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func putJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}

func getJSON(txn *badger.Txn, key []byte, out any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Compile-time assertion that BadgerStore implements domain.SessionStore.
var _ domain.SessionStore = (*BadgerStore)(nil)
