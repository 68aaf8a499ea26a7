package lockout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces lockout keys in a shared redis instance.
const KeyPrefix = "auth:lockout:"

const maxTxRetries = 100

// RedisStore shares lockout state between processes. Each Update is an
// optimistic WATCH/MULTI transaction on a single key, so concurrent
// failures against the same identity are never lost.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. ttl bounds how long an idle entry
// survives; it should be at least the lockout window.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisStoreFromURL connects to redis and pings it.
func NewRedisStoreFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStore(client, ttl), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) (Entry, bool, error) {
	k := KeyPrefix + key

	var (
		result Entry
		kept   bool
	)
	txf := func(tx *redis.Tx) error {
		cur, ok, err := s.load(ctx, tx, k)
		if err != nil {
			return err
		}
		next, keep := fn(cur, ok)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if !keep {
				pipe.Del(ctx, k)
				return nil
			}
			data, err := json.Marshal(next)
			if err != nil {
				return err
			}
			pipe.Set(ctx, k, data, s.ttl)
			return nil
		})
		if err == nil {
			result, kept = next, keep
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if err == nil {
			if !kept {
				return Entry{}, false, nil
			}
			return result, true, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Entry{}, false, err
	}
	return Entry{}, false, fmt.Errorf("lockout update %q: too much contention", key)
}

func (s *RedisStore) load(ctx context.Context, tx *redis.Tx, k string) (Entry, bool, error) {
	data, err := tx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// A corrupt record is treated as absent and overwritten.
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, KeyPrefix+key).Err()
}
