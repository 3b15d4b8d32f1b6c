package redisclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/store"
)

var _ store.Locker = (*Locker)(nil)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLock_ReleasesAfterRun(t *testing.T) {
	mr, client := newTestClient(t)
	l := NewLocker(client, time.Second, 0)

	err := l.WithLock(context.Background(), "collection:Availability", func(ctx context.Context) error {
		if !mr.Exists("lock:collection:Availability") {
			t.Error("expected lock key held during fn")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with lock: %v", err)
	}
	if mr.Exists("lock:collection:Availability") {
		t.Error("expected lock key released")
	}
}

func TestWithLock_BusyWithoutWait(t *testing.T) {
	mr, client := newTestClient(t)
	if err := mr.Set("lock:collection:Appointment", "someone-else"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	l := NewLocker(client, time.Second, 0)
	called := false
	err := l.WithLock(context.Background(), "collection:Appointment", func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrLockNotAcquired) || !errors.Is(err, apperr.ErrPersistence) {
		t.Fatalf("expected ErrLockNotAcquired, got %v", err)
	}
	if called {
		t.Error("fn must not run without the lock")
	}

	got, _ := mr.Get("lock:collection:Appointment")
	if got != "someone-else" {
		t.Errorf("expected foreign lock untouched, got %q", got)
	}
}

func TestWithLock_WaitsForHolder(t *testing.T) {
	_, client := newTestClient(t)
	l := NewLocker(client, time.Second, 2*time.Second)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "collection:Payment", func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("with lock: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("expected mutual exclusion, saw %d holders at once", maxSeen)
	}
}

func TestWithLock_PropagatesFnError(t *testing.T) {
	mr, client := newTestClient(t)
	l := NewLocker(client, time.Second, 0)
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), "k", func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if mr.Exists("lock:k") {
		t.Error("expected lock released after failure")
	}
}
