package syncx

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("source-a")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected at most 1 concurrent holder, got %d", maxActive)
	}
}

func TestKeyedMutexAllowsDistinctKeys(t *testing.T) {
	km := NewKeyedMutex()

	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on distinct key blocked")
	}
}

func TestKeyedMutexTryLock(t *testing.T) {
	km := NewKeyedMutex()

	unlock, ok := km.TryLock("a")
	if !ok {
		t.Fatal("first TryLock should succeed")
	}
	if _, ok := km.TryLock("a"); ok {
		t.Fatal("second TryLock on held key should fail")
	}
	unlock()
	unlock() // double release is a no-op

	unlock2, ok := km.TryLock("a")
	if !ok {
		t.Fatal("TryLock after release should succeed")
	}
	unlock2()
}

func TestKeyedMutexCleansUpEntries(t *testing.T) {
	km := NewKeyedMutex()

	unlock := km.Lock("a")
	unlock()

	km.mu.Lock()
	n := len(km.locks)
	km.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected empty lock table, got %d entries", n)
	}
}
