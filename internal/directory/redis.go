package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cipherlink/internal/domain"
)

// RedisBackend keeps bundles in Redis so several directory instances can
// share them.
//
//	<prefix>bundle:<account>  JSON bundle without one-time pre-keys
//	<prefix>opks:<account>    list of JSON one-time pre-keys
//	<prefix>next:<account>    one past the highest one-time pre-key id queued
//
// Fetch pops with LPOP, which is atomic across instances, so each one-time
// pre-key is served at most once.
type RedisBackend struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisBackend(rdb redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{rdb: rdb, prefix: prefix}
}

func (r *RedisBackend) bundleKey(account domain.AccountID) string {
	return r.prefix + "bundle:" + string(account)
}

func (r *RedisBackend) poolKey(account domain.AccountID) string {
	return r.prefix + "opks:" + string(account)
}

func (r *RedisBackend) nextKey(account domain.AccountID) string {
	return r.prefix + "next:" + string(account)
}

// publishAttempts bounds optimistic retries when a concurrent publish for the
// same account touches the watched keys.
const publishAttempts = 5

func (r *RedisBackend) Publish(ctx context.Context, account domain.AccountID, bundle domain.PublicKeyBundle) error {
	data, err := json.Marshal(baseBundle(bundle))
	if err != nil {
		return err
	}
	bundleKey, poolKey, nextKey := r.bundleKey(account), r.poolKey(account), r.nextKey(account)
	txf := func(tx *redis.Tx) error {
		var prev *domain.PublicKeyBundle
		raw, err := tx.Get(ctx, bundleKey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var b domain.PublicKeyBundle
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("decode stored bundle: %w", err)
			}
			prev = &b
		}
		next, err := tx.Get(ctx, nextKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		fresh, replace, newNext := poolUpdate(prev, next, bundle)
		opks := make([]any, 0, len(fresh))
		for _, k := range fresh {
			b, err := json.Marshal(k)
			if err != nil {
				return err
			}
			opks = append(opks, b)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, bundleKey, data, 0)
			pipe.Set(ctx, nextKey, newNext, 0)
			if replace {
				pipe.Del(ctx, poolKey)
			}
			if len(opks) > 0 {
				pipe.RPush(ctx, poolKey, opks...)
			}
			return nil
		})
		return err
	}

	for i := 0; i < publishAttempts; i++ {
		err = r.rdb.Watch(ctx, txf, bundleKey, nextKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("redis publish %q: %w", account, err)
	}
	return nil
}

func (r *RedisBackend) Fetch(ctx context.Context, account domain.AccountID) (domain.PublicKeyBundle, bool, error) {
	data, err := r.rdb.Get(ctx, r.bundleKey(account)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PublicKeyBundle{}, false, nil
	}
	if err != nil {
		return domain.PublicKeyBundle{}, false, fmt.Errorf("redis get bundle %q: %w", account, err)
	}
	var out domain.PublicKeyBundle
	if err := json.Unmarshal(data, &out); err != nil {
		return domain.PublicKeyBundle{}, false, fmt.Errorf("decode bundle %q: %w", account, err)
	}

	raw, err := r.rdb.LPop(ctx, r.poolKey(account)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return out, true, nil
	case err != nil:
		return domain.PublicKeyBundle{}, false, fmt.Errorf("redis pop one-time pre-key %q: %w", account, err)
	}
	var opk domain.OneTimePreKeyPublic
	if err := json.Unmarshal(raw, &opk); err != nil {
		return domain.PublicKeyBundle{}, false, fmt.Errorf("decode one-time pre-key %q: %w", account, err)
	}
	out.OneTimePreKey = &opk
	return out, true, nil
}

var _ Backend = (*RedisBackend)(nil)
