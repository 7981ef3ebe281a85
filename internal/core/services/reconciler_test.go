package services

import (
	"context"
	"errors"
	"testing"

	"streamcast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var desired = domain.EndpointSettings{
	Server: "rtmp://a.rtmp.example.com/live2",
	Key:    "abcd-1234",
}

func TestApplyWritesWhenIdle(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(false, nil).Once()
	encoder.On("SetOutputDestination", mock.Anything, desired).Return(nil).Once()
	encoder.On("GetOutputDestination", mock.Anything).Return(desired, nil).Once()

	r := NewEndpointReconciler(encoder, testCollector(), 0, testLogger())

	outcome, err := r.Apply(context.Background(), desired)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplyApplied, outcome)
	encoder.AssertExpectations(t)
}

func TestApplySkipsWhileStreaming(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(true, nil).Once()

	r := NewEndpointReconciler(encoder, testCollector(), 0, testLogger())

	outcome, err := r.Apply(context.Background(), desired)
	require.NoError(t, err)
	assert.Equal(t, domain.ApplySkippedAlreadyStreaming, outcome)

	// Never writes while the output is active.
	encoder.AssertNotCalled(t, "SetOutputDestination", mock.Anything, mock.Anything)
}

func TestApplyFailsWhenActivityUnknown(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(false, errors.New("connection lost")).Once()

	r := NewEndpointReconciler(encoder, testCollector(), 0, testLogger())

	outcome, err := r.Apply(context.Background(), desired)
	assert.Error(t, err)
	assert.Equal(t, domain.ApplyFailed, outcome)
	encoder.AssertNotCalled(t, "SetOutputDestination", mock.Anything, mock.Anything)
}

func TestApplyDetectsReadBackMismatch(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(false, nil).Once()
	encoder.On("SetOutputDestination", mock.Anything, desired).Return(nil).Once()
	encoder.On("GetOutputDestination", mock.Anything).Return(domain.EndpointSettings{
		Server: desired.Server,
		Key:    "stale-key",
	}, nil).Once()

	r := NewEndpointReconciler(encoder, testCollector(), 0, testLogger())

	outcome, err := r.Apply(context.Background(), desired)
	assert.ErrorIs(t, err, domain.ErrEndpointMismatch)
	assert.Equal(t, domain.ApplyFailed, outcome)

	// The error carries only masked key material.
	assert.NotContains(t, err.Error(), "abcd-1234")
	assert.NotContains(t, err.Error(), "stale-key")
}

func TestApplyFailsOnWriteError(t *testing.T) {
	encoder := newMockEncoder(t)
	encoder.On("QueryOutputActive", mock.Anything).Return(false, nil).Once()
	encoder.On("SetOutputDestination", mock.Anything, desired).Return(errors.New("request timed out")).Once()

	r := NewEndpointReconciler(encoder, testCollector(), 0, testLogger())

	outcome, err := r.Apply(context.Background(), desired)
	assert.Error(t, err)
	assert.Equal(t, domain.ApplyFailed, outcome)
	encoder.AssertNotCalled(t, "GetOutputDestination", mock.Anything)
}
