package sync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SameKeySerializes(t *testing.T) {
	m := NewKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("req-1")
			defer m.Unlock("req-1")
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Zero(t, m.Len())
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex()
	m.Lock("req-1")
	defer m.Unlock("req-1")

	done := make(chan struct{})
	go func() {
		m.Lock("req-2")
		m.Unlock("req-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on req-2 blocked behind req-1")
	}
}

func TestKeyedMutex_TryLock(t *testing.T) {
	m := NewKeyedMutex()
	assert.True(t, m.TryLock("a"))
	assert.False(t, m.TryLock("a"))
	m.Unlock("a")
	assert.True(t, m.TryLock("a"))
	m.Unlock("a")
	assert.Zero(t, m.Len())
}

func TestKeyedMutex_UnlockUnheldPanics(t *testing.T) {
	m := NewKeyedMutex()
	assert.Panics(t, func() { m.Unlock("missing") })
}
