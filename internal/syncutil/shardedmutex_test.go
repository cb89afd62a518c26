package syncutil

import (
	"sync"
	"testing"
)

func TestShardedMutexSerializesSameKey(t *testing.T) {
	var sm ShardedMutex
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := sm.Lock("user-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("expected 100 increments, got %d", counter)
	}
}

func TestShardedMutexUnlockAllowsReacquire(t *testing.T) {
	var sm ShardedMutex

	unlock := sm.Lock("user-1")
	unlock()

	done := make(chan struct{})
	go func() {
		unlock := sm.Lock("user-1")
		unlock()
		close(done)
	}()
	<-done
}
