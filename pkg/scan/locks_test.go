package scan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostLocksMutualExclusion(t *testing.T) {
	l := newHostLocks()

	assert.True(t, l.TryAcquire(1))
	assert.False(t, l.TryAcquire(1))
	assert.True(t, l.TryAcquire(2), "locks are per host")

	l.Release(1)
	assert.True(t, l.TryAcquire(1))
	assert.True(t, l.Held(1))
	assert.True(t, l.Held(2))
}

func TestHostLocksConcurrentAcquire(t *testing.T) {
	l := newHostLocks()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins int
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire(7) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestHostLocksReleaseIdempotentForFreeHost(t *testing.T) {
	l := newHostLocks()
	l.Release(42) // releasing an unheld lock is a no-op
	assert.True(t, l.TryAcquire(42))
}
