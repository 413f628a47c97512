package application

import (
	"context"
	"sync"
)

// LocalRoomLocker is an in-process RoomLocker. It serialises callers within a
// single instance only.
type LocalRoomLocker struct {
	mu    sync.Mutex
	rooms map[string]*roomSlot
}

type roomSlot struct {
	sem     chan struct{}
	waiters int
}

// NewLocalRoomLocker returns an empty in-process locker.
func NewLocalRoomLocker() *LocalRoomLocker {
	return &LocalRoomLocker{rooms: make(map[string]*roomSlot)}
}

// LockRoom implements RoomLocker.
func (l *LocalRoomLocker) LockRoom(ctx context.Context, roomID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.rooms[roomID]
	if !ok {
		slot = &roomSlot{sem: make(chan struct{}, 1)}
		l.rooms[roomID] = slot
	}
	slot.waiters++
	l.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(roomID, slot, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(roomID, slot, true) })
	}, nil
}

func (l *LocalRoomLocker) release(roomID string, slot *roomSlot, held bool) {
	if held {
		<-slot.sem
	}
	l.mu.Lock()
	slot.waiters--
	if slot.waiters == 0 {
		delete(l.rooms, roomID)
	}
	l.mu.Unlock()
}

// held reports how many rooms currently have a lock holder or waiter.
func (l *LocalRoomLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}
