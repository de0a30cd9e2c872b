package application

import (
	"sort"
	"sync"
)

// keyedLocker serializes work per key. Entries are reference counted and
// dropped once nobody holds or waits for them.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu      sync.Mutex
	holders int
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock acquires every key in sorted order and returns the matching release.
func (l *keyedLocker) Lock(keys ...string) (unlock func()) {
	ordered := uniqueStrings(keys)
	sort.Strings(ordered)

	held := make([]*keyedLock, 0, len(ordered))
	for _, key := range ordered {
		l.mu.Lock()
		lock, ok := l.locks[key]
		if !ok {
			lock = &keyedLock{}
			l.locks[key] = lock
		}
		lock.holders++
		l.mu.Unlock()

		lock.mu.Lock()
		held = append(held, lock)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.mu.Lock()
			held[i].holders--
			if held[i].holders == 0 {
				delete(l.locks, ordered[i])
			}
			l.mu.Unlock()
		}
	}
}

func (l *keyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func personLockKey(eventID, personID string) string {
	return "event/" + eventID + "/person/" + personID
}

func bookingLockKey(eventID, bookingID string) string {
	return "event/" + eventID + "/booking/" + bookingID
}

func commitLockKeys(eventID, bookingID string, personIDs []string) []string {
	keys := make([]string, 0, len(personIDs)+1)
	if bookingID != "" {
		keys = append(keys, bookingLockKey(eventID, bookingID))
	}
	for _, id := range personIDs {
		keys = append(keys, personLockKey(eventID, id))
	}
	return keys
}
