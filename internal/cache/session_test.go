package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrCompute_ComputesOnce(t *testing.T) {
	c := New(NewMemoryStore(Policy{}))
	calls := 0
	compute := func(context.Context) (string, error) {
		calls++
		return "- hello", nil
	}
	fp := Fingerprint("u1", "hi", "twitter")
	a, hit1, err := c.GetOrCompute(context.Background(), "s1", fp, compute)
	if err != nil || hit1 {
		t.Fatalf("first call: hit=%v err=%v", hit1, err)
	}
	b, hit2, err := c.GetOrCompute(context.Background(), "s1", fp, compute)
	if err != nil || !hit2 {
		t.Fatalf("second call: hit=%v err=%v", hit2, err)
	}
	if calls != 1 {
		t.Fatalf("compute called %d times", calls)
	}
	if a != b {
		t.Fatalf("replies differ: %q vs %q", a, b)
	}
}

func TestGetOrCompute_SessionsAreIsolated(t *testing.T) {
	c := New(NewMemoryStore(Policy{}))
	calls := 0
	compute := func(context.Context) (string, error) { calls++; return "r", nil }
	fp := Fingerprint("u1", "hi", "twitter")
	_, _, _ = c.GetOrCompute(context.Background(), "s1", fp, compute)
	_, hit, _ := c.GetOrCompute(context.Background(), "s2", fp, compute)
	if hit || calls != 2 {
		t.Fatalf("expected separate sessions to miss independently, hit=%v calls=%d", hit, calls)
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c := New(NewMemoryStore(Policy{}))
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "s", "fp", func(context.Context) (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, hit, err := c.GetOrCompute(context.Background(), "s", "fp", func(context.Context) (string, error) { return "ok", nil })
	if err != nil || hit || v != "ok" {
		t.Fatalf("expected recompute after failure, got %q hit=%v err=%v", v, hit, err)
	}
}

func TestGetOrCompute_ConcurrentSameSession(t *testing.T) {
	c := New(NewMemoryStore(Policy{}))
	var calls int32
	compute := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		return "r", nil
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrCompute(context.Background(), "s", "fp", compute); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()
	if calls != 1 {
		t.Fatalf("compute ran %d times", calls)
	}
	if len(c.locks) != 0 {
		t.Fatalf("session locks leaked: %d", len(c.locks))
	}
}

func TestGetOrCompute_RequiresSession(t *testing.T) {
	c := New(NewMemoryStore(Policy{}))
	if _, _, err := c.GetOrCompute(context.Background(), "", "fp", nil); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestEndSession(t *testing.T) {
	store := NewMemoryStore(Policy{})
	c := New(store)
	_, _, _ = c.GetOrCompute(context.Background(), "s", "fp", func(context.Context) (string, error) { return "r", nil })
	if store.Len("s") != 1 {
		t.Fatalf("expected one entry")
	}
	if err := c.EndSession(context.Background(), "s"); err != nil {
		t.Fatal(err)
	}
	if store.Len("s") != 0 {
		t.Fatalf("expected session dropped")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("u1", "hi", "twitter")
	if a != Fingerprint("u1", "hi", "twitter") {
		t.Fatal("fingerprint not deterministic")
	}
	if a == Fingerprint("u1", "hi", "yamap") || Fingerprint("ab", "c", "x") == Fingerprint("a", "bc", "x") {
		t.Fatal("fingerprint collision")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
}

// lockingStore stands in for a store shared by several processes: each Cache
// has its own in-process locks, only Lock coordinates them.
type lockingStore struct {
	*MemoryStore
	mu    sync.Mutex
	held  map[string]chan struct{}
	locks int32
}

func (s *lockingStore) Lock(ctx context.Context, session, fingerprint string, _ time.Duration) (func(), error) {
	key := session + "\x00" + fingerprint
	for {
		s.mu.Lock()
		ch, busy := s.held[key]
		if !busy {
			ch = make(chan struct{})
			s.held[key] = ch
			s.mu.Unlock()
			atomic.AddInt32(&s.locks, 1)
			return func() {
				s.mu.Lock()
				delete(s.held, key)
				s.mu.Unlock()
				close(ch)
			}, nil
		}
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestGetOrCompute_SharedStoreComputesOnceAcrossCaches(t *testing.T) {
	store := &lockingStore{MemoryStore: NewMemoryStore(Policy{}), held: map[string]chan struct{}{}}
	caches := []*Cache{New(store), New(store)}
	var calls int32
	compute := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return "- shared", nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(c *Cache) {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), "s1", "fp", compute)
			if err == nil && v != "- shared" {
				err = errors.New("unexpected reply " + v)
			}
			errs <- err
		}(caches[i%2])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("compute calls=%d, want 1", n)
	}
}

func TestGetOrCompute_LockErrorIsReturned(t *testing.T) {
	store := &lockingStore{MemoryStore: NewMemoryStore(Policy{}), held: map[string]chan struct{}{}}
	release, _ := store.Lock(context.Background(), "s1", "fp", 0)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := New(store).GetOrCompute(ctx, "s1", "fp", func(context.Context) (string, error) {
		t.Fatalf("compute ran while another holder had the lock")
		return "", nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want deadline exceeded", err)
	}
}
