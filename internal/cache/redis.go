package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// lockPollInterval is how often a waiting process retries a held lock.
const lockPollInterval = 50 * time.Millisecond

// releaseLock deletes the lock only while it still holds our token, so an
// expired holder cannot release a lock taken over by another process.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

const (
	// DefaultRedisPrefix namespaces reply entries.
	DefaultRedisPrefix = "goreply:session:"
	// DefaultRedisTTL applies when the policy sets none, so abandoned
	// sessions still disappear.
	DefaultRedisTTL = 12 * time.Hour
)

// RedisStore keeps entries in redis under <prefix><session>:<fingerprint>
// with a TTL. It lets several server processes share operator sessions; Lock
// keeps them from computing the same fingerprint twice. The redis instance
// must run with persistence disabled (no RDB snapshots, no AOF) so entries
// never reach disk. MaxEntries is not enforced here.
type RedisStore struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// NewRedisStore connects to addr. The connection is lazy; Ping checks it.
func NewRedisStore(addr, password string, db int, policy Policy) *RedisStore {
	ttl := policy.TTL
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db, DialTimeout: 2 * time.Second}),
		Prefix: DefaultRedisPrefix,
		TTL:    ttl,
	}
}

func (r *RedisStore) key(session, fingerprint string) string {
	return r.Prefix + session + ":" + fingerprint
}

// Ping verifies connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, session, fingerprint string) (string, bool, error) {
	v, err := r.Client.Get(ctx, r.key(session, fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Put implements Store.
func (r *RedisStore) Put(ctx context.Context, session, fingerprint, reply string) error {
	if err := r.Client.Set(ctx, r.key(session, fingerprint), reply, r.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// EndSession implements Store.
func (r *RedisStore) EndSession(ctx context.Context, session string) error {
	iter := r.Client.Scan(ctx, 0, r.Prefix+session+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.Client.Del(ctx, keys...).Err()
}

// Lock implements Locker with SET NX on <key>:lock, polling until the lock is
// free or ctx ends.
func (r *RedisStore) Lock(ctx context.Context, session, fingerprint string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	key := r.key(session, fingerprint) + ":lock"
	token := uuid.NewString()
	t := time.NewTicker(lockPollInterval)
	defer t.Stop()
	for {
		ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		if ok {
			return func() {
				if err := releaseLock.Run(context.Background(), r.Client, []string{key}, token).Err(); err != nil {
					log.Warn().Err(err).Str("session", session).Msg("redis unlock failed")
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("redis lock: %w", ctx.Err())
		case <-t.C:
		}
	}
}

// Close releases the connection pool.
func (r *RedisStore) Close() error { return r.Client.Close() }
