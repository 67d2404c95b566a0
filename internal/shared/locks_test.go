package shared_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/estateline/estateline/internal/shared"
	_ "github.com/estateline/estateline/testing"
)

func newLocker(t *testing.T, maxWait time.Duration) (*shared.UserLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewUserLocker(client, time.Minute, maxWait), mr
}

func TestUserLockerAcquireRelease(t *testing.T) {
	locker, mr := newLocker(t, 100*time.Millisecond)

	release, err := locker.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !mr.Exists(shared.UserLockKey("user-1")) {
		t.Fatalf("lock key missing")
	}

	release()
	if mr.Exists(shared.UserLockKey("user-1")) {
		t.Fatalf("lock key survived release")
	}
}

func TestUserLockerContentionConflicts(t *testing.T) {
	locker, _ := newLocker(t, 60*time.Millisecond)

	release, err := locker.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer release()

	_, err = locker.Acquire(context.Background(), "user-1")
	if !errors.Is(err, shared.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUserLockerIndependentUsers(t *testing.T) {
	locker, _ := newLocker(t, 60*time.Millisecond)

	releaseA, err := locker.Acquire(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	releaseB, err := locker.Acquire(context.Background(), "user-b")
	if err != nil {
		t.Fatalf("acquire b blocked by unrelated user: %v", err)
	}
	defer releaseB()
}

func TestUserLockerWaitsForRelease(t *testing.T) {
	locker, _ := newLocker(t, time.Second)

	release, err := locker.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		release()
	}()

	second, err := locker.Acquire(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("second acquire should win after release: %v", err)
	}
	second()
}
