// Package cache memoizes generated replies per operator session so repeated
// identical requests do not reach the completion backend again.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy bounds how long entries live within a session. The zero value keeps
// entries until the session ends.
type Policy struct {
	// TTL expires entries older than this. Zero disables expiry.
	TTL time.Duration
	// MaxEntries caps entries per session, evicting the oldest first. Zero
	// disables the cap.
	MaxEntries int
}

// Store holds at most one reply per (session, fingerprint). Implementations
// must never write entries to durable storage.
type Store interface {
	Get(ctx context.Context, session, fingerprint string) (string, bool, error)
	Put(ctx context.Context, session, fingerprint, reply string) error
	EndSession(ctx context.Context, session string) error
}

// Locker is implemented by stores shared between processes. Lock claims a
// (session, fingerprint) pair across all of them until the returned release
// func runs or ttl passes.
type Locker interface {
	Lock(ctx context.Context, session, fingerprint string, ttl time.Duration) (release func(), err error)
}

// DefaultLockTTL bounds how long a crashed holder can block a fingerprint.
const DefaultLockTTL = 90 * time.Second

// ErrNoSession is returned when a request carries no session id.
var ErrNoSession = errors.New("session id required")

// Cache serializes lookups per session so a compute function runs at most
// once per fingerprint even when the same session sends concurrent requests.
// Different sessions proceed independently.
type Cache struct {
	store Store
	// LockTTL is passed to stores implementing Locker. It should exceed the
	// completion timeout.
	LockTTL time.Duration

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// New wraps store.
func New(store Store) *Cache {
	return &Cache{store: store, LockTTL: DefaultLockTTL, locks: map[string]*sessionLock{}}
}

// GetOrCompute returns the stored reply for fingerprint or runs compute and
// stores its result. hit reports whether compute was skipped. A compute error
// is returned as is and nothing is stored.
func (c *Cache) GetOrCompute(ctx context.Context, session, fingerprint string, compute func(context.Context) (string, error)) (reply string, hit bool, err error) {
	if session == "" {
		return "", false, ErrNoSession
	}
	unlock := c.lock(session)
	defer unlock()

	if v, ok, err := c.store.Get(ctx, session, fingerprint); err != nil {
		return "", false, err
	} else if ok {
		return v, true, nil
	}
	if l, ok := c.store.(Locker); ok {
		release, err := l.Lock(ctx, session, fingerprint, c.LockTTL)
		if err != nil {
			return "", false, err
		}
		defer release()
		// Another process may have stored the reply while we waited.
		if v, ok, err := c.store.Get(ctx, session, fingerprint); err != nil {
			return "", false, err
		} else if ok {
			return v, true, nil
		}
	}
	v, err := compute(ctx)
	if err != nil {
		return "", false, err
	}
	// A failed write only costs a future backend call; the reply is already
	// produced and logged.
	if err := c.store.Put(ctx, session, fingerprint, v); err != nil {
		log.Warn().Err(err).Str("session", session).Msg("cache put failed")
	}
	return v, false, nil
}

// EndSession discards every entry of session.
func (c *Cache) EndSession(ctx context.Context, session string) error {
	if session == "" {
		return ErrNoSession
	}
	unlock := c.lock(session)
	defer unlock()
	return c.store.EndSession(ctx, session)
}

func (c *Cache) lock(session string) func() {
	c.mu.Lock()
	l, ok := c.locks[session]
	if !ok {
		l = &sessionLock{}
		c.locks[session] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, session)
		}
		c.mu.Unlock()
	}
}
