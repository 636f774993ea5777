package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New("cache", WithFailureThreshold(2))

	b.Record(errBoom)
	assert.Equal(t, StateClosed, b.State())
	b.Record(errBoom)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var transitions []State
	b := New("cache",
		WithFailureThreshold(1),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return now }),
		WithStateChange(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)

	b.Record(errBoom)
	assert.False(t, b.Allow())

	now = now.Add(time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	b.Record(nil)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := New("cache", WithFailureThreshold(3), WithCooldown(time.Second), WithClock(func() time.Time { return now }))
	for range 3 {
		b.Record(errBoom)
	}
	now = now.Add(time.Second)
	assert.True(t, b.Allow())

	b.Record(errBoom)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerDoSkipsWhileOpen(t *testing.T) {
	b := New("cache", WithFailureThreshold(1))
	ran, err := b.Do(func() error { return errBoom })
	assert.True(t, ran)
	assert.ErrorIs(t, err, errBoom)

	called := false
	ran, err = b.Do(func() error { called = true; return nil })
	assert.False(t, ran)
	assert.NoError(t, err)
	assert.False(t, called)

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}
