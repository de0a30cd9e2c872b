package application

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedLockerSerializesSameKey(t *testing.T) {
	t.Parallel()

	locker := newKeyedLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(personLockKey("e1", "p1"), bookingLockKey("e1", "b1"))
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
		t.Fatalf("expected exclusive access, saw %d concurrent holders", maxSeen)
	}
	if n := locker.size(); n != 0 {
		t.Fatalf("expected released locks to be dropped, %d remain", n)
	}
}

func TestKeyedLockerOppositeOrderDoesNotDeadlock(t *testing.T) {
	t.Parallel()

	locker := newKeyedLocker()
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				locker.Lock("a", "b")()
			}()
			go func() {
				defer wg.Done()
				locker.Lock("b", "a")()
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock acquisition deadlocked")
	}
}

func TestKeyedLockerDistinctKeysRunConcurrently(t *testing.T) {
	t.Parallel()

	locker := newKeyedLocker()
	unlockA := locker.Lock(personLockKey("e1", "p1"))
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		locker.Lock(personLockKey("e1", "p2"))()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("independent key was blocked")
	}
}
