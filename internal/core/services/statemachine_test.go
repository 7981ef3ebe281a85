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

func newTestStateMachine(platform *mockPlatform, operator *mockOperator) *broadcastStateMachine {
	return NewBroadcastStateMachine(platform, operator, testCollector(), StateMachineConfig{
		PollCount: 3,
		PollDelay: time.Millisecond,
		GraceWait: time.Millisecond,
	}, testLogger()).(*broadcastStateMachine)
}

func TestPromoteAlreadyLiveIsIdempotent(t *testing.T) {
	platform := &mockPlatform{}
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).Return(domain.RemoteLive, nil)

	m := newTestStateMachine(platform, &mockOperator{})

	// Two promotions of a live broadcast issue zero transition requests.
	for i := 0; i < 2; i++ {
		report, err := m.PromoteToLive(context.Background(), "b1")
		require.NoError(t, err)
		assert.Equal(t, domain.RemoteLive, report.FinalState)
		assert.False(t, report.OperatorAsserted)
	}
	platform.AssertNotCalled(t, "RequestTransition", mock.Anything, mock.Anything, mock.Anything)
}

func TestPromoteAutoAdvancedDuringPolling(t *testing.T) {
	platform := &mockPlatform{}
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).Return(domain.RemoteTesting, nil).Once()
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).Return(domain.RemoteLive, nil).Once()

	m := newTestStateMachine(platform, &mockOperator{})

	report, err := m.PromoteToLive(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.RemoteLive, report.FinalState)
	platform.AssertNotCalled(t, "RequestTransition", mock.Anything, mock.Anything, mock.Anything)
}

func TestPromoteRequestsTransitionAfterPolls(t *testing.T) {
	platform := &mockPlatform{}
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).Return(domain.RemoteReady, nil)
	platform.On("RequestTransition", mock.Anything, domain.BroadcastID("b1"), domain.RemoteLive).
		Return(domain.OutcomeSuccess, domain.RemoteLive, nil).Once()

	m := newTestStateMachine(platform, &mockOperator{})

	report, err := m.PromoteToLive(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.RemoteLive, report.FinalState)

	// Bounded polling: initial query plus PollCount re-checks, no more.
	platform.AssertNumberOfCalls(t, "GetBroadcastState", 4)
}

func TestPromoteRedundantOutcomeAccepted(t *testing.T) {
	platform := &mockPlatform{}
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).Return(domain.RemoteReady, nil)
	platform.On("RequestTransition", mock.Anything, domain.BroadcastID("b1"), domain.RemoteLive).
		Return(domain.OutcomeRedundant, domain.RemoteLive, nil).Once()

	m := newTestStateMachine(platform, &mockOperator{})

	report, err := m.PromoteToLive(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.RemoteLive, report.FinalState)
}

func TestPromoteInvalidThenLiveOnRecheck(t *testing.T) {
	platform := &mockPlatform{}
	// Initial state query and the polling window all see "ready".
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).Return(domain.RemoteReady, nil).Times(4)
	platform.On("RequestTransition", mock.Anything, domain.BroadcastID("b1"), domain.RemoteLive).
		Return(domain.OutcomeInvalid, domain.RemoteUnknown, nil).Once()
	// Grace re-check finds the broadcast live after all.
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).Return(domain.RemoteLive, nil).Once()

	operator := &mockOperator{}
	m := newTestStateMachine(platform, operator)

	report, err := m.PromoteToLive(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.RemoteLive, report.FinalState)
	assert.False(t, report.OperatorAsserted)
	operator.AssertNotCalled(t, "ConfirmLiveTransition", mock.Anything, mock.Anything)
}

func TestPromoteManualFallbackConfirmed(t *testing.T) {
	platform := &mockPlatform{}
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).Return(domain.RemoteReady, nil)
	platform.On("RequestTransition", mock.Anything, domain.BroadcastID("b1"), domain.RemoteLive).
		Return(domain.OutcomeInvalid, domain.RemoteUnknown, nil).Once()

	operator := &mockOperator{}
	operator.On("ConfirmLiveTransition", mock.Anything, domain.BroadcastID("b1")).Return(true, nil).Once()

	m := newTestStateMachine(platform, operator)

	report, err := m.PromoteToLive(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, report.OperatorAsserted)

	// The report records the fallback decision trail.
	var sawFallback bool
	for _, a := range report.Attempts {
		if a.Decision == domain.DecisionManualFallback {
			sawFallback = true
		}
	}
	assert.True(t, sawFallback)
	operator.AssertExpectations(t)
}

func TestPromoteManualFallbackDeclined(t *testing.T) {
	platform := &mockPlatform{}
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).Return(domain.RemoteReady, nil)
	platform.On("RequestTransition", mock.Anything, domain.BroadcastID("b1"), domain.RemoteLive).
		Return(domain.OutcomeInvalid, domain.RemoteUnknown, nil).Once()

	operator := &mockOperator{}
	operator.On("ConfirmLiveTransition", mock.Anything, domain.BroadcastID("b1")).Return(false, nil).Once()

	m := newTestStateMachine(platform, operator)

	report, err := m.PromoteToLive(context.Background(), "b1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPromotionFailed)
	assert.False(t, report.OperatorAsserted)
}

func TestPromoteStateQueryFailure(t *testing.T) {
	platform := &mockPlatform{}
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).
		Return(domain.RemoteUnknown, errors.New("network down"))

	m := newTestStateMachine(platform, &mockOperator{})

	report, err := m.PromoteToLive(context.Background(), "b1")
	assert.ErrorIs(t, err, domain.ErrPromotionFailed)
	assert.Equal(t, domain.RemoteUnknown, report.FinalState)
}

func TestPromoteTerminalTransitionFailure(t *testing.T) {
	platform := &mockPlatform{}
	platform.On("GetBroadcastState", mock.Anything, domain.BroadcastID("b1")).Return(domain.RemoteReady, nil)
	platform.On("RequestTransition", mock.Anything, domain.BroadcastID("b1"), domain.RemoteLive).
		Return(domain.OutcomeFailed, domain.RemoteUnknown, errors.New("authError")).Once()

	m := newTestStateMachine(platform, &mockOperator{})

	_, err := m.PromoteToLive(context.Background(), "b1")
	assert.ErrorIs(t, err, domain.ErrPromotionFailed)
}

func TestDemote(t *testing.T) {
	tests := []struct {
		name    string
		outcome domain.TransitionOutcome
		err     error
		wantErr bool
	}{
		{name: "success", outcome: domain.OutcomeSuccess},
		{name: "redundant is success", outcome: domain.OutcomeRedundant},
		{name: "failure propagates", outcome: domain.OutcomeFailed, err: errors.New("boom"), wantErr: true},
		{name: "invalid is an error for demote", outcome: domain.OutcomeInvalid, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform := &mockPlatform{}
			platform.On("RequestTransition", mock.Anything, domain.BroadcastID("b1"), domain.RemoteComplete).
				Return(tt.outcome, domain.RemoteUnknown, tt.err).Once()

			m := newTestStateMachine(platform, &mockOperator{})
			err := m.Demote(context.Background(), "b1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
