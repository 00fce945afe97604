package coordinator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocksSerializeSameKey(t *testing.T) {
	locks := NewKeyedLocks()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("layer-1/AAPL")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyedLocksReleaseEntries(t *testing.T) {
	locks := NewKeyedLocks()

	unlock := locks.Lock("layer-1/AAPL")
	locks.mu.Lock()
	held := len(locks.locks)
	locks.mu.Unlock()
	assert.Equal(t, 1, held)

	unlock()

	locks.mu.Lock()
	remaining := len(locks.locks)
	locks.mu.Unlock()
	assert.Zero(t, remaining, "released keys should not accumulate")
}

func TestKeyedLocksIndependentKeysDoNotBlock(t *testing.T) {
	locks := NewKeyedLocks()

	unlockA := locks.Lock("layer-1/AAPL")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("layer-1/MSFT")
		unlockB()
		close(done)
	}()

	<-done // would deadlock if keys shared a mutex
}
