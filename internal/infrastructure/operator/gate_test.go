package operator

import (
	"context"
	"strings"
	"testing"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateResolveConfirms(t *testing.T) {
	gate := NewGate(logger.NewNop().Sugar())

	resultCh := make(chan bool, 1)
	go func() {
		ok, err := gate.ConfirmLiveTransition(context.Background(), "bcast-1")
		require.NoError(t, err)
		resultCh <- ok
	}()

	// Wait until the confirmation is registered before resolving.
	require.Eventually(t, func() bool {
		_, pending := gate.Pending()
		return pending
	}, time.Second, 10*time.Millisecond)

	subject, err := gate.Resolve(true)
	require.NoError(t, err)
	assert.Equal(t, domain.BroadcastID("bcast-1"), subject)

	select {
	case ok := <-resultCh:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("confirmation never unblocked")
	}
}

func TestGateResolveDecline(t *testing.T) {
	gate := NewGate(logger.NewNop().Sugar())

	resultCh := make(chan bool, 1)
	go func() {
		ok, err := gate.ConfirmLiveTransition(context.Background(), "bcast-1")
		require.NoError(t, err)
		resultCh <- ok
	}()

	require.Eventually(t, func() bool {
		_, pending := gate.Pending()
		return pending
	}, time.Second, 10*time.Millisecond)

	_, err := gate.Resolve(false)
	require.NoError(t, err)
	assert.False(t, <-resultCh)
}

func TestGateCancellation(t *testing.T) {
	gate := NewGate(logger.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := gate.ConfirmLiveTransition(ctx, "bcast-1")
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		_, pending := gate.Pending()
		return pending
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	// After cancellation nothing is pending anymore.
	assert.Eventually(t, func() bool {
		_, pending := gate.Pending()
		return !pending
	}, time.Second, 10*time.Millisecond)
	_, err := gate.Resolve(true)
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)
}

func TestGateResolveWithoutPending(t *testing.T) {
	gate := NewGate(logger.NewNop().Sugar())
	_, err := gate.Resolve(true)
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)
}

func TestStdinPromptAnswers(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"y\n", true},
		{"YES\n", true},
		{"no\n", false},
		{"anything else\n", false},
	}
	for _, tt := range tests {
		var out strings.Builder
		prompt := NewStdinPrompt(strings.NewReader(tt.input), &out, logger.NewNop().Sugar())
		ok, err := prompt.ConfirmLiveTransition(context.Background(), "bcast-1")
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "input %q", tt.input)
		assert.Contains(t, out.String(), "bcast-1")
	}
}

func TestStdinPromptCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never yields data.
	blocked, _ := blockingReader()
	prompt := NewStdinPrompt(blocked, &strings.Builder{}, logger.NewNop().Sugar())
	_, err := prompt.ConfirmLiveTransition(ctx, "bcast-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func blockingReader() (*blockingR, chan struct{}) {
	ch := make(chan struct{})
	return &blockingR{ch: ch}, ch
}

type blockingR struct{ ch chan struct{} }

func (r *blockingR) Read(p []byte) (int, error) {
	<-r.ch
	return 0, nil
}
