package feed

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	var mu sync.Mutex
	inCritical := 0
	maxInCritical := 0

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("shard-a#alice#0")
			defer unlock()

			mu.Lock()
			inCritical++
			if inCritical > maxInCritical {
				maxInCritical = inCritical
			}
			mu.Unlock()

			mu.Lock()
			inCritical--
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxInCritical)
	require.Empty(t, km.locks)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.lock("a")

	done := make(chan struct{})
	go func() {
		unlockB := km.lock("b")
		unlockB()
		close(done)
	}()

	// Key b must not wait on key a's holder.
	<-done
	unlockA()
}
