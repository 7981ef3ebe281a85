package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func TestOpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		err := b.Do(func() error { return errUpstream })
		assert.ErrorIs(t, err, errUpstream)
	}
	assert.Equal(t, StateOpen, b.State())

	// Rejected without executing.
	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 1, Cooldown: time.Minute})

	require.Error(t, b.Do(func() error { return errUpstream }))
	require.Error(t, b.Do(func() error { return errUpstream }))
	require.NoError(t, b.Do(func() error { return nil }))
	require.Error(t, b.Do(func() error { return errUpstream }))
	require.Error(t, b.Do(func() error { return errUpstream }))

	assert.Equal(t, StateClosed, b.State(), "non-consecutive failures stay closed")
}

func TestHalfOpenRecovery(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})

	require.Error(t, b.Do(func() error { return errUpstream }))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: 10 * time.Millisecond})

	require.Error(t, b.Do(func() error { return errUpstream }))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, b.Do(func() error { return errUpstream }))
	assert.Equal(t, StateOpen, b.State())
}

func TestIsFailureFilter(t *testing.T) {
	errProtocol := errors.New("invalid transition")
	b := New(Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
		IsFailure:        func(err error) bool { return !errors.Is(err, errProtocol) },
	})

	// Protocol-level errors pass through without tripping the breaker.
	assert.ErrorIs(t, b.Do(func() error { return errProtocol }), errProtocol)
	assert.Equal(t, StateClosed, b.State())

	assert.ErrorIs(t, b.Do(func() error { return errUpstream }), errUpstream)
	assert.Equal(t, StateOpen, b.State())
}

func TestReset(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Hour})
	require.Error(t, b.Do(func() error { return errUpstream }))
	require.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Do(func() error { return nil }))
}
