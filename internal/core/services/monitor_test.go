package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"streamcast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAwaitActiveViaEvent(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(false, nil)

	m := NewStatusMonitor(encoder, testCollector(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	go func() {
		time.Sleep(50 * time.Millisecond)
		encoder.emit(domain.EventOutputActivated)
	}()

	assert.True(t, m.AwaitActive(ctx, 5*time.Second))
}

func TestAwaitActiveViaInitialPoll(t *testing.T) {
	encoder := newMockEncoder(t)
	// The start notification was missed; the poll finds the output running.
	encoder.On("QueryOutputActive", mock.Anything).Return(true, nil).Once()

	m := NewStatusMonitor(encoder, testCollector(), testLogger())
	assert.True(t, m.AwaitActive(context.Background(), 5*time.Second))
	encoder.AssertExpectations(t)
}

func TestAwaitActiveTimeoutWithFallbackPoll(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(false, nil).Once()
	encoder.On("QueryOutputActive", mock.Anything).Return(true, nil).Once()

	m := NewStatusMonitor(encoder, testCollector(), testLogger())
	// Initial poll says inactive, no event arrives; the post-timeout poll
	// still rescues the wait.
	assert.True(t, m.AwaitActive(context.Background(), 50*time.Millisecond))
	encoder.AssertExpectations(t)
}

func TestAwaitActiveTimeout(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(false, nil)

	m := NewStatusMonitor(encoder, testCollector(), testLogger())
	start := time.Now()
	assert.False(t, m.AwaitActive(context.Background(), 50*time.Millisecond))
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwaitActiveFailedPollIsNotInactive(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(false, errors.New("socket closed"))

	m := NewStatusMonitor(encoder, testCollector(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// Polls fail throughout, but an event still resolves the wait.
	go func() {
		time.Sleep(50 * time.Millisecond)
		encoder.emit(domain.EventOutputActivated)
	}()
	assert.True(t, m.AwaitActive(ctx, 5*time.Second))
}

func TestIsActiveErrorIsUnknown(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(false, errors.New("connection refused"))

	m := NewStatusMonitor(encoder, testCollector(), testLogger())
	active, err := m.IsActive(context.Background())
	assert.False(t, active)
	assert.ErrorIs(t, err, domain.ErrActivityUnknown)
}

func TestLatchIsMonotonicUntilReset(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(false, nil)

	m := NewStatusMonitor(encoder, testCollector(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	encoder.emit(domain.EventOutputActivated)
	require.Eventually(t, func() bool {
		return m.AwaitActive(ctx, 10*time.Millisecond)
	}, time.Second, 10*time.Millisecond)

	// Deactivation does not clear the latch within the session.
	encoder.emit(domain.EventOutputDeactivated)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, m.AwaitActive(ctx, 10*time.Millisecond))

	// Reset clears it at the session boundary.
	m.Reset()
	assert.False(t, m.AwaitActive(ctx, 50*time.Millisecond))
}

func TestIsActiveTrueSetsLatch(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(true, nil).Once()

	m := NewStatusMonitor(encoder, testCollector(), testLogger())

	active, err := m.IsActive(context.Background())
	require.NoError(t, err)
	require.True(t, active)

	// Latch satisfied; no further polls needed.
	assert.True(t, m.AwaitActive(context.Background(), 10*time.Millisecond))
	encoder.AssertExpectations(t)
}
