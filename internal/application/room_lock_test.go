package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLocalRoomLocker_SerialisesSameRoom(t *testing.T) {
	t.Parallel()

	locker := NewLocalRoomLocker()
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.LockRoom(context.Background(), "room-1")
			if err != nil {
				t.Errorf("unexpected lock error: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
	if got := locker.held(); got != 0 {
		t.Fatalf("expected lock table to be empty, got %d entries", got)
	}
}

func TestLocalRoomLocker_IndependentRooms(t *testing.T) {
	t.Parallel()

	locker := NewLocalRoomLocker()
	unlockA, err := locker.LockRoom(context.Background(), "room-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locker.LockRoom(ctx, "room-b")
	if err != nil {
		t.Fatalf("expected a different room to lock immediately, got %v", err)
	}
	unlockB()
}

func TestLocalRoomLocker_HonoursContext(t *testing.T) {
	t.Parallel()

	locker := NewLocalRoomLocker()
	unlock, err := locker.LockRoom(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := locker.LockRoom(ctx, "room-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	unlock()
	unlock()
	if got := locker.held(); got != 0 {
		t.Fatalf("expected lock table to be empty, got %d entries", got)
	}
}
