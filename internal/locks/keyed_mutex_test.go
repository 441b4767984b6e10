package locks

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithLock_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	const workers = 32
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = km.WithLock("issue-1", func() error {
				// non-atomic increment; only safe under the lock
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, workers, counter)
}

func TestWithLock_PropagatesError(t *testing.T) {
	km := NewKeyedMutex()
	sentinel := errors.New("boom")

	err := km.WithLock("issue-1", func() error { return sentinel })
	require.ErrorIs(t, err, sentinel)

	// the key is released after the error
	err = km.WithLock("issue-1", func() error { return nil })
	require.NoError(t, err)
}

func TestLock_IndependentKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	km.Lock("issue-1")

	done := make(chan struct{})
	go func() {
		km.Lock("issue-2")
		km.Unlock("issue-2")
		close(done)
	}()
	<-done

	km.Unlock("issue-1")
}

func TestUnlock_UnheldKeyPanics(t *testing.T) {
	km := NewKeyedMutex()
	require.Panics(t, func() { km.Unlock("never-locked") })
}

func TestLock_EntryDiscardedWhenIdle(t *testing.T) {
	km := NewKeyedMutex()
	km.Lock("issue-1")
	km.Unlock("issue-1")

	km.mu.Lock()
	defer km.mu.Unlock()
	require.Empty(t, km.entries)
}
